// Package mcptools exposes page rendering as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Renderer is the part of the page service the tools call.
type Renderer interface {
	RenderDocument(ctx context.Context, content json.RawMessage, format, mediaBaseURL string) (string, error)
	RenderPage(ctx context.Context, slug, format string) (string, error)
}

type RenderDocumentRequest struct {
	Content      string `json:"content"`      // document JSON
	Format       string `json:"format"`       // html, markdown or text
	MediaBaseURL string `json:"mediaBaseUrl"` // optional media host override
}

type GetPageRequest struct {
	Slug   string `json:"slug"`
	Format string `json:"format"`
}

type RenderResponse struct {
	Format string `json:"format"`
	Output string `json:"output"`
}

// NewServer builds an MCP server with the render_document and get_page tools.
func NewServer(renderer Renderer, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		"Clubhouse Renderer",
		version,
		server.WithToolCapabilities(false),
	)

	renderTool := mcp.NewTool("render_document",
		mcp.WithDescription("Render rich-text editor JSON to HTML, markdown or plain text"),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The editor state as a JSON string with a top-level \"root\" node"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: html (default), markdown or text"),
		),
		mcp.WithString("mediaBaseUrl",
			mcp.Description("Base URL joined to relative media URLs"),
		),
	)
	s.AddTool(renderTool, mcp.NewTypedToolHandler(renderDocumentHandler(renderer, logger)))

	pageTool := mcp.NewTool("get_page",
		mcp.WithDescription("Render a stored page by slug"),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("The page slug, e.g. 'opening-hours'"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: html (default), markdown or text"),
		),
	)
	s.AddTool(pageTool, mcp.NewTypedToolHandler(getPageHandler(renderer, logger)))

	return s
}

// NewHTTPHandler serves s as a streamable MCP endpoint at path.
func NewHTTPHandler(s *server.MCPServer, path string) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath(path))
}

func renderDocumentHandler(renderer Renderer, logger *zap.Logger) func(context.Context, mcp.CallToolRequest, RenderDocumentRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args RenderDocumentRequest) (*mcp.CallToolResult, error) {
		if args.Content == "" {
			return mcp.NewToolResultError("content is required"), nil
		}
		if !json.Valid([]byte(args.Content)) {
			return mcp.NewToolResultError("content must be valid JSON"), nil
		}
		out, err := renderer.RenderDocument(ctx, json.RawMessage(args.Content), args.Format, args.MediaBaseURL)
		if err != nil {
			logger.Debug("render_document failed", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("failed to render document: %v", err)), nil
		}
		return textResult(args.Format, out)
	}
}

func getPageHandler(renderer Renderer, logger *zap.Logger) func(context.Context, mcp.CallToolRequest, GetPageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args GetPageRequest) (*mcp.CallToolResult, error) {
		if args.Slug == "" {
			return mcp.NewToolResultError("slug is required"), nil
		}
		out, err := renderer.RenderPage(ctx, args.Slug, args.Format)
		if err != nil {
			logger.Debug("get_page failed", zap.String("slug", args.Slug), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("failed to render page %q: %v", args.Slug, err)), nil
		}
		return textResult(args.Format, out)
	}
}

func textResult(format, output string) (*mcp.CallToolResult, error) {
	if format == "" {
		format = "html"
	}
	data, err := json.Marshal(RenderResponse{Format: format, Output: output})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
