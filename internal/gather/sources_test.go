package gather

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

func TestLoadSourcesSkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news_rss.txt"), []byte(
		"# comment\n\nhttps://example.com/feed max_redirects=3\n",
	), 0o644))

	sources, err := LoadSources(dir)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://example.com/feed", sources[0].Identifier)
	assert.Equal(t, model.CategoryNews, sources[0].Category)
	assert.Equal(t, "3", sources[0].Params["max_redirects"])
}

func TestLoadSourcesMissingFileIsNotAnError(t *testing.T) {
	sources, err := LoadSources(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, sources)
}
