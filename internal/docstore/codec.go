package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec serializes structured documents.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec writes indented JSON. Object keys come out sorted, so the same
// value always produces the same bytes.
type JSONCodec struct {
	Indent string
}

func (c JSONCodec) Marshal(v any) ([]byte, error) {
	indent := c.Indent
	if indent == "" {
		indent = "  "
	}
	return json.MarshalIndent(v, "", indent)
}

func (c JSONCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// YAMLCodec writes YAML with a two-space indent.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes YAML into the same shapes JSON produces. Mappings with
// non-string keys (1: a, true: b) come back with their keys formatted as
// strings, so every decoded value can be re-encoded as JSON.
func (YAMLCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return stringKeys(v), nil
}

func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	}
	return v
}

// DefaultCodecs maps structured-data extensions to their codecs.
func DefaultCodecs() map[string]Codec {
	return map[string]Codec{
		".json": JSONCodec{},
		".yaml": YAMLCodec{},
		".yml":  YAMLCodec{},
	}
}

// DefaultScriptExtensions are listed as documents but stored verbatim.
var DefaultScriptExtensions = []string{".js"}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
