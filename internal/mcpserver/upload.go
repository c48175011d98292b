package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxUploadSize    = 10 << 20 // 10 MB
	defaultUploadDir = "uploads"
)

var (
	mimeToExt = map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"image/gif":                ".gif",
		"image/webp":               ".webp",
		"application/pdf":          ".pdf",
		"text/plain":               ".txt",
		"application/octet-stream": ".bin",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type uploadResult struct {
	Path    string `json:"path"`
	Outcome string `json:"outcome"`
	Size    int    `json:"size"`
}

func (s *Server) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, ext, err := decodeContent(content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxUploadSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: exceeds %d bytes", maxUploadSize)), nil
	}

	name := sanitizeFilename(req.GetString("filename", ""))
	if name == "" {
		name = uuid.NewString() + ext
	}
	if err := validateMagicBytes(data, strings.ToLower(path.Ext(name))); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dir := req.GetString("path", defaultUploadDir)
	if _, err := s.svc.MakeDir(ctx, dir); err != nil {
		return errorResult(err), nil
	}
	res, err := s.svc.Upload(ctx, dir, name, data)
	if err != nil {
		if res != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Outcome, res.Path)), nil
		}
		return errorResult(err), nil
	}
	return jsonResult(uploadResult{Path: res.Path, Outcome: res.Outcome.String(), Size: res.Size}), nil
}

// decodeContent accepts a base64 data URI or bare base64 and returns the
// bytes with an extension guessed from the declared MIME type.
func decodeContent(content string) ([]byte, string, error) {
	if !strings.HasPrefix(content, "data:") {
		data, err := decodeBase64(content)
		return data, ".bin", err
	}
	return decodeDataURI(content)
}

func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := decodeBase64(rest[commaIdx+1:])
	if err != nil {
		return nil, "", err
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		ext = ".bin"
	}
	return data, ext, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// sanitizeFilename keeps only the base name and replaces unsafe characters.
// Leading dots are stripped so uploads never become hidden files.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = safeFilenameRe.ReplaceAllString(name, "_")
	return strings.TrimLeft(name, ".")
}

// validateMagicBytes checks that binary formats with a known signature
// actually start with it. Other extensions pass unchecked.
func validateMagicBytes(data []byte, ext string) error {
	var magic []byte
	switch ext {
	case ".png":
		magic = []byte{0x89, 'P', 'N', 'G'}
	case ".jpg", ".jpeg":
		magic = []byte{0xFF, 0xD8, 0xFF}
	case ".gif":
		magic = []byte("GIF8")
	case ".pdf":
		magic = []byte("%PDF")
	case ".webp":
		if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) || string(data[8:12]) != "WEBP" {
			return fmt.Errorf("content does not match extension %s", ext)
		}
		return nil
	default:
		return nil
	}
	if !bytes.HasPrefix(data, magic) {
		return fmt.Errorf("content does not match extension %s", ext)
	}
	return nil
}
