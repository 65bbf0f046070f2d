// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes juv notebook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/juv/internal/noteservice"
	"github.com/starford/juv/internal/stamp"
	"github.com/starford/juv/internal/storage"
)

const formatURI = "juv://notebook-format"

// Server wraps the MCP server with juv tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *noteservice.Service
}

// New creates a new MCP server with all juv tools registered. Paths given
// to the tools are resolved by store, which should be rooted.
func New(store storage.Provider, svc *noteservice.Service, version string) *Server {
	s := &Server{store: store, svc: svc}

	s.mcp = server.NewMCPServer(
		"juv",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List scripts (.py) and notebooks (.ipynb) in the workspace or a folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("cat_notebook",
		mcp.WithDescription("Render a script or notebook as markdown (fenced code cells) or as a percent-format script. "+
			"See the juv://notebook-format resource for the markdown layout."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to a .py or .ipynb file")),
		mcp.WithString("format", mcp.Description("md (default) or script"), mcp.Enum(noteservice.FormatMarkdown, noteservice.FormatScript)),
	), s.catNotebook)

	s.mcp.AddTool(mcp.NewTool("read_metadata",
		mcp.WithDescription("Read the inline script metadata (requires-python, dependencies, tool.uv) of a script or notebook."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to a .py or .ipynb file")),
	), s.readMetadata)

	s.mcp.AddTool(mcp.NewTool("stamp_notebook",
		mcp.WithDescription("Set or clear tool.uv.exclude-newer so dependency resolution ignores later releases. "+
			"At most one of time, rev, latest and clear may be given; none stamps the current time."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to a .py or .ipynb file")),
		mcp.WithString("time", mcp.Description("RFC 3339 timestamp or a YYYY-MM-DD date (meaning the end of that day)")),
		mcp.WithString("rev", mcp.Description("Git revision whose commit date is used")),
		mcp.WithBoolean("latest", mcp.Description("Use the commit date of HEAD")),
		mcp.WithBoolean("clear", mcp.Description("Remove the field")),
	), s.stampNotebook)

	s.mcp.AddTool(mcp.NewTool("clear_outputs",
		mcp.WithDescription("Remove outputs and execution counts from a notebook."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to a .ipynb file")),
		mcp.WithBoolean("check", mcp.Description("Only report whether the notebook has outputs")),
	), s.clearOutputs)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Notebook Markdown Format",
			mcp.WithResourceDescription("How juv renders notebooks as markdown."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) listNotebooks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	docs, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notebooks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) catNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Cat(ctx, path, req.GetString("format", noteservice.FormatMarkdown))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

type metadataResult struct {
	Path           string   `json:"path"`
	Found          bool     `json:"found"`
	RequiresPython string   `json:"requiresPython,omitempty"`
	Dependencies   []string `json:"dependencies"`
	ExcludeNewer   string   `json:"excludeNewer,omitempty"`
	TOML           string   `json:"toml,omitempty"`
}

func (s *Server) readMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta, raw, err := s.svc.Metadata(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := metadataResult{Path: path, Dependencies: []string{}}
	if meta != nil {
		res.Found = true
		res.RequiresPython = meta.RequiresPython
		if meta.Dependencies != nil {
			res.Dependencies = meta.Dependencies
		}
		res.ExcludeNewer = meta.Tool.UV.ExcludeNewer
		res.TOML = raw
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) stampNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := s.svc.Stamp(ctx, path, stamp.Request{
		Time:   req.GetString("time", ""),
		Rev:    req.GetString("rev", ""),
		Latest: req.GetBool("latest", false),
		Clear:  req.GetBool("clear", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", path, action)), nil
}

func (s *Server) clearOutputs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	check := req.GetBool("check", false)
	hits, err := s.svc.Clear(ctx, []string{path}, check)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch {
	case check && len(hits) > 0:
		return mcp.NewToolResultText(fmt.Sprintf("has outputs: %s", path)), nil
	case check:
		return mcp.NewToolResultText(fmt.Sprintf("clean: %s", path)), nil
	case len(hits) > 0:
		return mcp.NewToolResultText(fmt.Sprintf("cleared: %s", path)), nil
	default:
		return mcp.NewToolResultText(fmt.Sprintf("already clean: %s", path)), nil
	}
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NotebookFormat,
		},
	}, nil
}
