package gather

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/kenhuangus/ai-briefing/internal/model"
)

// sourceListFile maps a line-delimited config file to the
// category/kind every line in it should be parsed as.
type sourceListFile struct {
	file     string
	category model.Category
	kind     model.SourceKind
	platform string // only set for social lists; informs PlatformStatus
}

var sourceLists = []sourceListFile{
	{file: "news_rss.txt", category: model.CategoryNews, kind: model.SourceKindRSS},
	{file: "news_api.txt", category: model.CategoryNews, kind: model.SourceKindAPI},
	{file: "research_preprint.txt", category: model.CategoryResearch, kind: model.SourceKindPreprint},
	{file: "community_forum.txt", category: model.CategoryCommunity, kind: model.SourceKindForum},
	{file: "social_microblog.txt", category: model.CategorySocial, kind: model.SourceKindMicroblog, platform: "microblog"},
	{file: "social_federated_microblog.txt", category: model.CategorySocial, kind: model.SourceKindMicroblog, platform: "federated-microblog"},
	{file: "social_longform.txt", category: model.CategorySocial, kind: model.SourceKindMicroblog, platform: "federated-longform"},
}

// LoadSources reads all seven source list files from dir (config/sources
// by convention), skipping blank lines and `#`-prefixed comments. A
// line may carry `key=value` params separated by whitespace after the
// identifier, e.g. `https://example.com/feed max_redirects=3`.
func LoadSources(dir string) ([]model.Source, error) {
	var out []model.Source
	for _, lf := range sourceLists {
		path := filepath.Join(dir, lf.file)
		sources, err := loadOneList(path, lf)
		if err != nil {
			return nil, err
		}
		out = append(out, sources...)
	}
	return out, nil
}

func loadOneList(path string, lf sourceListFile) ([]model.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []model.Source
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		identifier := fields[0]
		params := map[string]string{}
		if lf.platform != "" {
			params["platform"] = lf.platform
		}
		for _, f := range fields[1:] {
			if k, v, ok := strings.Cut(f, "="); ok {
				params[k] = v
			}
		}
		out = append(out, model.Source{
			Identifier: identifier,
			Category:   lf.category,
			Kind:       lf.kind,
			Params:     params,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
