package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("StudioTV", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("StudioTV live session server. Query the session currently shown on the studio display, detected personal records, trainee progress baselines, and the reconciliation status log."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetLiveSession, Handler: h.getLiveSession},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetTraineeProgress, Handler: h.getTraineeProgress},
		server.ServerTool{Tool: toolGetStatusLog, Handler: h.getStatusLog},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resLiveSession, Handler: h.liveSession},
		server.ServerResource{Resource: resStatusLog, Handler: h.statusLog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resLiveSession = mcp.NewResource(
	"studiotv://live_session",
	"Live Session",
	mcp.WithResourceDescription("The session currently shown on the studio display: trainee, workout, calendar event, and active screen mode"),
	mcp.WithMIMEType("application/json"),
)

var resStatusLog = mcp.NewResource(
	"studiotv://status_log",
	"Status Log",
	mcp.WithResourceDescription("Recent reconciliation diagnostics, newest first"),
	mcp.WithMIMEType("application/json"),
)
