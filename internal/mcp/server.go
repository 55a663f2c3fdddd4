package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered. Bedtime
// and waketime averages are reported in loc.
func New(ds DataSource, version string, loc *time.Location, log *slog.Logger) *server.MCPServer {
	if loc == nil {
		loc = time.UTC
	}
	s := server.NewMCPServer("phasewatch", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("phasewatch sleep archive. Query nights recorded by wearables, the circadian score of the latest export, and bedtime/waketime consistency. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, loc: loc, log: log, now: time.Now}

	s.AddTools(
		server.ServerTool{Tool: toolGetNights, Handler: h.getNights},
		server.ServerTool{Tool: toolGetCircadianScore, Handler: h.getCircadianScore},
		server.ServerTool{Tool: toolGetSleepSummary, Handler: h.getSleepSummary},
	)

	s.AddResources(
		server.ServerResource{Resource: resLatestExport, Handler: h.latestExport},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	loc *time.Location
	log *slog.Logger
	now func() time.Time
}

var resLatestExport = mcp.NewResource(
	"phasewatch://latest_export",
	"Latest Export",
	mcp.WithResourceDescription("The most recent history export with its circadian score components"),
	mcp.WithMIMEType("application/json"),
)
