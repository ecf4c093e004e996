// Package mcpserver exposes the tool registry over the Model Context
// Protocol. Every tool call runs through the admission facade before its
// handler executes; gate failures come back as structured MCP tool errors.
package mcpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/buzzposter/buzzposter/internal/admission"
	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/logging"
	"github.com/buzzposter/buzzposter/internal/tools"
	"github.com/buzzposter/buzzposter/internal/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey string

const authorizationKey contextKey = "authorization"

// Server serves the registry over streamable-HTTP MCP.
type Server struct {
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(facade *admission.Facade, registry *tools.Registry) *Server {
	mcpServer := server.NewMCPServer(
		"buzzposter",
		version.Version,
		server.WithToolCapabilities(false),
	)

	for _, t := range registry.List() {
		mcpServer.AddTool(buildTool(t), toolHandler(facade, t))
	}

	return &Server{
		mcpServer:  mcpServer,
		httpServer: server.NewStreamableHTTPServer(mcpServer),
	}
}

// ServeHTTP captures the Authorization header into the request context and
// delegates to the MCP transport, so tool handlers can authenticate the
// calling tenant.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithValue(r.Context(), authorizationKey, r.Header.Get("Authorization"))
	ctx = logging.WithRequestID(ctx, logging.GenerateRequestID())
	s.httpServer.ServeHTTP(w, r.WithContext(ctx))
}

func authorizationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(authorizationKey).(string); ok {
		return v
	}
	return ""
}

func buildTool(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, a := range t.Args {
		propOpts := []mcp.PropertyOption{mcp.Description(a.Description)}
		if a.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(a.Name, propOpts...))
	}
	return mcp.NewTool(t.Name, opts...)
}

func toolHandler(facade *admission.Facade, t tools.Tool) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tc, err := facade.AdmitHeader(ctx, authorizationFromContext(ctx), t.Name, t.Feature)
		if err != nil {
			return errorResult(err), nil
		}

		result, err := t.Handler(ctx, tc, req.GetArguments())
		if err != nil {
			log.Printf("❌ [%s] Tool %s failed for %s: %v",
				logging.GetRequestID(ctx), t.Name, tc.User.Email, err)
			return errorResult(err), nil
		}

		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// errorResult renders err as the structured error payload: domain failures
// keep their kind, message and connect URL; other tool errors are reported
// with kind "internal".
func errorResult(err error) *mcp.CallToolResult {
	e, ok := apierr.As(err)
	if !ok {
		e = &apierr.Error{Kind: "internal", Message: err.Error()}
	}
	payload, merr := json.Marshal(e)
	if merr != nil {
		return mcp.NewToolResultError(e.Message)
	}
	return mcp.NewToolResultError(string(payload))
}
