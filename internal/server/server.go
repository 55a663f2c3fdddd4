package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/phasewatch/internal/ingest"
	phasemcp "github.com/claude/phasewatch/internal/mcp"
	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/storage"
)

// Store is the archive the handlers read from. *storage.DB satisfies it.
type Store interface {
	GetExport(ctx context.Context, id uuid.UUID, userID int) (*models.ExportRow, error)
	LatestExport(ctx context.Context, userID int, device string) (*models.ExportRow, error)
	QueryNights(ctx context.Context, start, end time.Time, userID int, device string) ([]models.NightRow, error)
	GetNightSummary(ctx context.Context, start, end time.Time, bucket string, userID int, loc *time.Location) ([]storage.NightSummaryPeriod, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	InsertUploadLog(ctx context.Context, log storage.UploadLog) (int64, error)
	QueryUploadLogs(ctx context.Context, userID, limit int) ([]storage.UploadLog, error)
	GetDevices(ctx context.Context, userID int) ([]storage.Device, error)
	SetDeviceEnabled(ctx context.Context, userID int, name string, enabled bool) error
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	ingest   *ingest.Provider
	log      *slog.Logger
	apiKey   string
	loc      *time.Location
	validate *validator.Validate
	whois    WhoIsClient
	router   chi.Router
}

// New creates a new Server with all routes configured. Summary times of day
// are reported in loc.
func New(db Store, provider *ingest.Provider, apiKey string, loc *time.Location, log *slog.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		db:       db,
		ingest:   provider,
		log:      log,
		apiKey:   apiKey,
		loc:      loc,
		validate: validator.New(),
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity resolution from the dev user to tailnet
// WhoIs lookups.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.whois = lc
}

// MountMCP serves the MCP server over streamable HTTP at /mcp. Tool calls
// run as the user resolved by the identity middleware.
func (s *Server) MountMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return phasemcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.router.Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identify)

	// Device uploads (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/exports", s.handleUploadExport)
	})

	s.router.Get("/api/v1/me", s.handleMe)
	s.router.Get("/api/v1/exports/latest", s.handleLatestExport)
	s.router.Get("/api/v1/exports/{id}", s.handleGetExport)
	s.router.Get("/api/v1/nights", s.handleQueryNights)
	s.router.Get("/api/v1/nights/summary", s.handleNightSummary)

	s.router.Get("/api/v1/stats", s.handleStats)
	s.router.Get("/api/v1/uploads", s.handleUploadLogs)
	s.router.Get("/api/v1/devices", s.handleDevices)
	s.router.Put("/api/v1/devices/{name}", s.handleSetDevice)
}
