package gather

import (
	"strings"

	"golang.org/x/net/html"
)

// allowedTags survive sanitization as plain text content with light
// paragraph/list spacing; everything else is unwrapped to its text
// content. <script> and <style> subtrees are always dropped entirely.
var allowedTags = map[string]bool{
	"p": true, "br": true, "li": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
}

// SanitizeToPlainText strips an HTML fragment down to plain text,
// inserting a newline at block-level boundaries so paragraphs and list
// items remain separated. It is used to normalize gathered item
// content before an Item is emitted (spec §4.5).
func SanitizeToPlainText(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var sb strings.Builder
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth == 0 && allowedTags[tag] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth == 0 && allowedTags[tag] {
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
