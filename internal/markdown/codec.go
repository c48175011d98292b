package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec maps Markdown files to documents of the form
//
//	{"frontmatter": {...}, "body": "...", "title": "...", "tags": [...], "links": [...]}
//
// and back. It satisfies docstore.Codec.
type Codec struct{}

// Unmarshal parses data into a document map. Invalid front matter is an
// error, which makes the store fall back to the raw text.
func (Codec) Unmarshal(data []byte) (any, error) {
	n, err := Parse(data)
	if err != nil {
		return nil, err
	}
	fm := n.FrontMatter
	if fm == nil {
		fm = map[string]any{}
	}
	tags := make([]any, len(n.Tags))
	for i, t := range n.Tags {
		tags[i] = t
	}
	links := make([]any, len(n.Links))
	for i, l := range n.Links {
		links[i] = l
	}
	return map[string]any{
		KeyFrontMatter: fm,
		KeyBody:        n.Body,
		KeyTitle:       n.Title,
		KeyTags:        tags,
		KeyLinks:       links,
	}, nil
}

// Marshal renders v as Markdown. A string is written as the body alone; a
// map contributes its "frontmatter" and "body" keys. Derived keys are
// ignored.
func (Codec) Marshal(v any) ([]byte, error) {
	switch doc := v.(type) {
	case nil:
		return []byte{}, nil
	case string:
		return []byte(doc), nil
	case map[string]any:
		body, _ := doc[KeyBody].(string)
		fm, _ := doc[KeyFrontMatter].(map[string]any)
		return render(fm, body)
	}
	return nil, fmt.Errorf("markdown: cannot encode %T", v)
}

func render(fm map[string]any, body string) ([]byte, error) {
	if len(fm) == 0 {
		return []byte(body), nil
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("markdown: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(strings.TrimLeft(body, "\n\r"))
	return buf.Bytes(), nil
}
