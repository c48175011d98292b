// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folderdb document tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folderdb/internal/apperr"
	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/docstore"
)

const conventionsURI = "folderdb://conventions"

// Server wraps the MCP server with folderdb tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all folderdb tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"folderdb",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document. Structured documents (.json, .yaml, .yml) are returned decoded; "+
			"other files are returned as text."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the store root (e.g. users/alice.json)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("write_document",
		mcp.WithDescription("Write a document, replacing any existing content. "+
			"For .json/.yaml/.yml paths the content must be JSON. Read get_store_conventions first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the store root")),
		mcp.WithString("content", mcp.Required(), mcp.Description("JSON for structured documents, text otherwise")),
		mcp.WithBoolean("parents", mcp.Description("Create missing parent directories first")),
		mcp.WithString("if_match", mcp.Description("Checksum the current content must have")),
	), s.writeDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document only if nothing exists at the path. Parent directories are created. "+
			"A path without a document extension names a collection and a <uuid>.json name is generated."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document or collection path")),
		mcp.WithString("content", mcp.Description("JSON for structured documents, text otherwise; defaults to {}")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List the documents and subdirectories of a directory."),
		mcp.WithString("path", mcp.Description("Directory path (empty for the store root)")),
	), s.listDirectory)

	s.mcp.AddTool(mcp.NewTool("delete_path",
		mcp.WithDescription("Delete a document or a whole directory tree. Deleting a missing path succeeds."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document or directory path")),
	), s.deletePath)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Return the documents of a directory for which a jq expression yields a truthy value."),
		mcp.WithString("query", mcp.Required(), mcp.Description(`jq expression, e.g. .status == "open"`)),
		mcp.WithString("path", mcp.Description("Directory to search (empty for the store root)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 100)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_store_conventions",
		mcp.WithDescription("Returns how paths, extensions and values are handled by the store. "+
			"Call this before writing documents."),
	), s.getConventions)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Store a binary file from a data URI or base64 string. Existing files are never overwritten."),
		mcp.WithString("content", mcp.Required(), mcp.Description("data:<mime>;base64,<data> URI or plain base64")),
		mcp.WithString("path", mcp.Description("Target directory (default uploads)")),
		mcp.WithString("filename", mcp.Description("File name; generated from the content type when empty")),
	), s.uploadFile)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Store Conventions",
			mcp.WithResourceDescription("How folderdb maps paths and extensions to documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult phrases store errors for a model: the kind first, then detail.
func errorResult(err error) *mcp.CallToolResult {
	if k := docstore.KindOf(err); k != docstore.KindOther {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", k, err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) writeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := s.svc.DecodeValue(path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("parents", false) {
		if _, err := s.svc.MakeDir(ctx, parentDir(path)); err != nil {
			return errorResult(err), nil
		}
	}
	res, err := s.svc.Put(ctx, path, value, req.GetString("if_match", ""))
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return mcp.NewToolResultError("conflict: document changed since it was read"), nil
		}
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s (%d bytes)", res.Outcome, res.Path, res.Size)), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := path
	if !s.svc.Store().IsDocument(path) {
		target = path + "/new.json"
	}
	value, err := s.svc.DecodeValue(target, []byte(req.GetString("content", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Create(ctx, path, value)
	if err != nil {
		if res != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Outcome, res.Path)), nil
		}
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", res.Path)), nil
}

func (s *Server) listDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, err := s.svc.List(ctx, req.GetString("path", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(l), nil
}

func (s *Server) deletePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if pathpkg.Clean("/"+path) == "/" {
		return mcp.NewToolResultError("refusing to remove the store root"), nil
	}
	res, err := s.svc.Delete(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s (%d files, %d dirs)", res.Outcome, res.Path, res.Files, res.Dirs)), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, req.GetString("path", ""), query, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getConventions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoreConventions), nil
}

func (s *Server) readConventionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     StoreConventions,
		},
	}, nil
}

func parentDir(p string) string {
	dir := pathpkg.Dir(strings.Trim(p, "/"))
	if dir == "." {
		return ""
	}
	return dir
}
