// Package markdown decodes Markdown files with YAML front matter into
// structured documents, so notes can be read, patched and searched like
// any JSON or YAML document.
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document keys produced by Codec.Unmarshal. Only KeyFrontMatter and KeyBody
// are read back by Marshal; the others are derived.
const (
	KeyFrontMatter = "frontmatter"
	KeyBody        = "body"
	KeyTitle       = "title"
	KeyTags        = "tags"
	KeyLinks       = "links"
)

var (
	// ErrInvalidFrontMatter is returned when the block between the
	// delimiters is not a YAML mapping.
	ErrInvalidFrontMatter = errors.New("markdown: invalid front matter")

	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Note is a parsed Markdown file.
type Note struct {
	FrontMatter map[string]any
	Body        string
	Title       string
	Tags        []string
	Links       []string
}

// Parse splits data into front matter and body and derives the title, tags
// and wikilink targets. A file without an opening or closing delimiter is
// all body.
func Parse(data []byte) (*Note, error) {
	fm, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	return &Note{
		FrontMatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Tags:        extractTags(body, fm),
		Links:       extractLinks(body),
	}, nil
}

func splitFrontMatter(data []byte) (map[string]any, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFrontMatter, err)
	}
	return fm, body, nil
}

// extractLinks returns deduplicated [[wikilink]] targets with aliases removed.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	out := []string{}
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags merges the front matter "tags" list with inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		if _, dup := seen[t]; dup || t == "" {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if list, ok := fm[KeyTags].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(strings.TrimSpace(s))
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle prefers the front matter title, then the first H1 heading.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm[KeyTitle].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
