package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

const (
	serverName = "commerce-rag"
	maxLimit   = 50
)

// Server exposes the retrieval engine as MCP tools.
type Server struct {
	retriever    ports.ContextRetriever
	intents      ports.IntentDetector
	defaultLimit int
	mcp          *server.MCPServer
}

func NewServer(retriever ports.ContextRetriever, intents ports.IntentDetector, defaultLimit int, version string) *Server {
	s := &Server{
		retriever:    retriever,
		intents:      intents,
		defaultLimit: defaultLimit,
		mcp: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Retrieval over commerce orders, products and policies. Use detect_intents to see which domains a question touches and retrieve_context to fetch scored evidence."),
		),
	}

	s.mcp.AddTool(
		mcp.NewTool("retrieve_context",
			mcp.WithDescription("Route a natural-language question to the orders, products and policies sources and return the aggregated, scored evidence."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Customer question, e.g. 'where is ORD1023?'")),
			mcp.WithString("user_id", mcp.Description("Restrict order lookups to this customer.")),
			mcp.WithNumber("limit", mcp.Description("Maximum records per domain."), mcp.Min(1), mcp.Max(maxLimit)),
		),
		s.handleRetrieveContext,
	)
	s.mcp.AddTool(
		mcp.NewTool("detect_intents",
			mcp.WithDescription("Return the domains a question applies to, in priority order."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Customer question.")),
		),
		s.handleDetectIntents,
	)
	return s
}

// HTTPHandler serves the tools over streamable HTTP without session state.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)
}

func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := request.GetInt("limit", s.defaultLimit)
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	aggregated := s.retriever.Aggregate(ctx, domain.RetrieveRequest{
		Query:  strings.TrimSpace(query),
		UserID: strings.TrimSpace(request.GetString("user_id", "")),
		Limit:  limit,
	})
	return jsonResult(aggregated)
}

func (s *Server) handleDetectIntents(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	intents := s.intents.Detect(query)
	if intents == nil {
		intents = []domain.Domain{}
	}
	return jsonResult(intents)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
