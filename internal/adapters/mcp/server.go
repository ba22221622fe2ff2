package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

const serverName = "casestar"

// Tools exposes the client operations to MCP-speaking agents.
type Tools struct {
	processor ports.DocumentProcessor
	queries   ports.BackendQueryService
	settings  ports.SettingsManager
	stages    ports.StagePresenter
	readFile  func(string) ([]byte, error)
}

func NewTools(
	processor ports.DocumentProcessor,
	queries ports.BackendQueryService,
	settings ports.SettingsManager,
	stages ports.StagePresenter,
) *Tools {
	return &Tools{
		processor: processor,
		queries:   queries,
		settings:  settings,
		stages:    stages,
		readFile:  os.ReadFile,
	}
}

func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools.Register(s)
	return s
}

// Serve runs the MCP server over stdio until the client disconnects.
func Serve(version string, tools *Tools) error {
	return server.ServeStdio(NewServer(version, tools))
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Upload a local document to CaseStar and return its analysis (summary, key points, entities, case id)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a .pdf, .png, .jpg, .jpeg, .tiff, .txt, .doc or .docx file")),
	), t.analyzeDocument)

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Semantic search over documents already analyzed by CaseStar."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 5)")),
	), t.searchDocuments)

	s.AddTool(mcp.NewTool("check_health",
		mcp.WithDescription("Report the CaseStar backend health and per-service status."),
	), t.checkHealth)

	s.AddTool(mcp.NewTool("list_cases",
		mcp.WithDescription("List known cases, optionally filtered by title or id."),
		mcp.WithString("filter", mcp.Description("Case-insensitive substring of the case title or id")),
	), t.listCases)

	s.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Return the current client display settings."),
	), t.getSettings)

	s.AddTool(mcp.NewTool("get_stage",
		mcp.WithDescription("Return the current pipeline stage and any retained result."),
	), t.getStage)
}

func (t *Tools) analyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := t.readFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}

	result, err := t.processor.ProcessDocument(ctx, domain.DocumentFile{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Content:     content,
	})
	if err != nil {
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	return jsonResult(result)
}

func (t *Tools) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.queries.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (t *Tools) checkHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := t.queries.Health(ctx)
	if err != nil {
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	return jsonResult(status)
}

func (t *Tools) listCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cases, err := t.queries.Cases(ctx, req.GetString("filter", ""))
	if err != nil {
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	return jsonResult(cases)
}

func (t *Tools) getSettings(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.settings.Get())
}

func (t *Tools) getStage(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.stages.Snapshot())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
