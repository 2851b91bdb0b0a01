package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"compendium/internal/doctype"
	"compendium/internal/graphrag"
	"compendium/internal/indexer"
	"compendium/internal/tenant"
	"compendium/internal/toolsurface"
	"compendium/internal/version"
)

// serveMCP builds the MCP server, registers every tool, and serves it over
// stdio until ctx is cancelled.
func (s *server) serveMCP(ctx context.Context) error {
	impl := &mcp.Implementation{Name: "compendium", Version: version.Version}
	mcpServer := mcp.NewServer(impl, nil)

	s.registerSessionTools(mcpServer)
	s.registerIndexingTools(mcpServer)
	s.registerQueryTools(mcpServer)
	s.registerAdminTools(mcpServer)
	s.registerDiagnosticsTools(mcpServer)

	return mcpServer.Run(ctx, &mcp.StdioTransport{})
}

type activateProjectInput struct {
	ConfigPath string `json:"config_path"`
	Branch     string `json:"branch"`
}

type listDocTypesInput struct{}

func (s *server) registerSessionTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "activate_project",
		Description: "Activate a project config, binding this server's active session to its tenant.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in activateProjectInput) (*mcp.CallToolResult, toolsurface.ActivateProjectResult, error) {
		result, err := s.surface.ActivateProject(ctx, in.ConfigPath, in.Branch)
		if err != nil {
			return nil, toolsurface.ActivateProjectResult{}, err
		}
		sc := s.surface.Session.Current()
		s.watch.retarget(sc.RootPath, tenant.Key{Project: result.ProjectName, Branch: result.ActiveBranch, PathHash: result.PathHash})
		return nil, result, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_doc_types",
		Description: "List every registered document type and its requirements.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listDocTypesInput) (*mcp.CallToolResult, toolsurface.ListDocTypesResult, error) {
		result, err := s.surface.ListDocTypes(ctx)
		return nil, result, err
	})
}

type indexDocumentInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (s *server) registerIndexingTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "index_document",
		Description: "Index one markdown file's content under the active project's tenant.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in indexDocumentInput) (*mcp.CallToolResult, indexer.IndexResult, error) {
		result, err := s.surface.IndexDocument(ctx, in.FilePath, in.Content)
		return nil, result, err
	})
}

type semanticSearchInput struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

type searchExternalInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type ragQueryInput struct {
	Query     string `json:"query"`
	MaxChunks int    `json:"max_chunks,omitempty"`
	GraphHops int    `json:"graph_hops,omitempty"`
}

type ragQueryExternalInput struct {
	Query string `json:"query"`
}

func (s *server) registerQueryTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Rank the active project's indexed chunks by similarity to query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in semanticSearchInput) (*mcp.CallToolResult, toolsurface.SemanticSearchResult, error) {
		result, err := s.surface.SemanticSearch(ctx, in.Query, in.TopK, in.Filters)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_external_docs",
		Description: "Rank the shared, read-only external index by similarity to query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchExternalInput) (*mcp.CallToolResult, toolsurface.SemanticSearchResult, error) {
		result, err := s.surface.SearchExternalDocs(ctx, in.Query, in.TopK)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rag_query",
		Description: "Answer a natural-language question from the active project's indexed corpus.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in ragQueryInput) (*mcp.CallToolResult, graphrag.Result, error) {
		result, err := s.surface.RagQuery(ctx, in.Query, in.MaxChunks, in.GraphHops)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rag_query_external",
		Description: "Answer a natural-language question from the shared external index. Never requires an active session.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in ragQueryExternalInput) (*mcp.CallToolResult, graphrag.Result, error) {
		result, err := s.surface.RagQueryExternal(ctx, in.Query)
		return nil, result, err
	})
}

type deleteDocumentsInput struct {
	DryRun bool `json:"dry_run,omitempty"`
}

type updatePromotionLevelInput struct {
	DocumentPath string `json:"document_path"`
	Level        string `json:"level"`
}

type registerDocTypeInput struct {
	DocType doctype.Definition `json:"doc_type"`
}

func (s *server) registerAdminTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_documents",
		Description: "Delete every document indexed under the active project's tenant. Set dry_run to preview the count first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in deleteDocumentsInput) (*mcp.CallToolResult, toolsurface.DeleteResult, error) {
		result, err := s.surface.DeleteDocuments(ctx, in.DryRun)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_promotion_level",
		Description: "Change a document's promotion level (standard, important, critical).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in updatePromotionLevelInput) (*mcp.CallToolResult, toolsurface.PromotionLevelResult, error) {
		result, err := s.surface.UpdatePromotionLevel(ctx, in.DocumentPath, in.Level)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "register_doc_type",
		Description: "Register a new document type definition.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in registerDocTypeInput) (*mcp.CallToolResult, toolsurface.RegisterDocTypeResult, error) {
		result, err := s.surface.RegisterDocType(ctx, in.DocType)
		return nil, result, err
	})
}

type noInput struct{}

func (s *server) registerDiagnosticsTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_health",
		Description: "Report basic server liveness.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in noInput) (*mcp.CallToolResult, toolsurface.HealthResult, error) {
		result, err := s.surface.GetHealth(ctx)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_metrics",
		Description: "Report the active project's indexed corpus size.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in noInput) (*mcp.CallToolResult, toolsurface.MetricsResult, error) {
		result, err := s.surface.GetMetrics(ctx)
		return nil, result, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_status",
		Description: "Report the active session and server uptime.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in noInput) (*mcp.CallToolResult, toolsurface.StatusResult, error) {
		result, err := s.surface.GetStatus(ctx)
		return nil, result, err
	})
}
