// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the document pipeline for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/store"
)

// Server wraps the MCP server with pipeline tools.
type Server struct {
	mcp   *server.MCPServer
	store store.Store
}

// New creates a new MCP server with all pipeline tools registered.
func New(st store.Store) *Server {
	s := &Server{store: st}

	s.mcp = server.NewMCPServer(
		"Draftforge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List pipeline projects with status and document counts."),
		mcp.WithString("status", mcp.Description("Optional status filter: created, processing, completed, failed")),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Read one project including its status and document count."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
	), s.getProject)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all document versions owned by a project, newest first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("latest_document",
		mcp.WithDescription("Read the latest version of a project's document for one pipeline stage. "+
			"Stage types are described in the draftforge://pipeline resource."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Stage type: RAW_INPUT, REQUIREMENTS, BRD, BLUEPRINT, or DRAFT")),
	), s.latestDocument)

	s.mcp.AddTool(mcp.NewTool("unread_notifications",
		mcp.WithDescription("Return the number of unread pipeline notifications."),
	), s.unreadNotifications)

	// Resource: pipeline contract.
	s.mcp.AddResource(
		mcp.NewResource("draftforge://pipeline", "Pipeline Contract",
			mcp.WithResourceDescription("Stage ordering, document types, and completion semantics of the pipeline."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPipelineResource,
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

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := models.ProjectStatus("")
	if v, err := req.RequireString("status"); err == nil {
		status = models.ProjectStatus(v)
	}
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", status)), nil
	}

	projects, total, err := s.store.ListProjects(50, 0, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"projects": projects, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project, err := s.store.GetProject(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(project, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.store.ListByProject(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(docs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) latestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docType := models.DocumentType(typ)
	if !docType.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown document type: %s", typ)), nil
	}

	doc, err := s.store.Latest(id, docType)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no %s document for project %s", typ, id)), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) unreadNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.store.UnreadCount()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d unread notifications", count)), nil
}

func (s *Server) readPipelineResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "draftforge://pipeline",
			MIMEType: "text/markdown",
			Text:     PipelineContract,
		},
	}, nil
}
