// Package httpapi wires the stable HTTP surface: starting and streaming
// agent sessions, the legacy /realtime aliases, sync control, and
// liveness. All routes but /health require an authenticated session
// cookie, enforced by sessionAuth.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fctr-id/okta-ai-agent/internal/agent"
	codelibrarymongo "github.com/fctr-id/okta-ai-agent/internal/codelibrary/mongo"
	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/opsmeta"
)

// Config carries the fixed server parameters.
type Config struct {
	Port            int
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sane operating defaults.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // SSE streams hold the connection open indefinitely
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server bundles the dependencies every handler needs.
type Server struct {
	cfg      Config
	echo     *echo.Echo
	sessions *Registry
	ops      opsmeta.Client
	snapshot *graphsnapshot.Engine
	sync     *SyncController
	runOpts  agent.RunOptions
	library  codelibrarymongo.Client
}

// New builds an Echo server with the full route table registered.
// runOpts is used as a template for every new session: its Deps, Model,
// System prompt, and Tools are shared across sessions, only the
// transcript and usage counters differ per session. library may be nil,
// in which case sessions keep their code library in memory only and it
// does not survive an approval pause across process restarts.
func New(cfg Config, sessions *Registry, ops opsmeta.Client, snapshot *graphsnapshot.Engine, sync *SyncController, runOpts agent.RunOptions, library codelibrarymongo.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{cfg: cfg, echo: e, sessions: sessions, ops: ops, snapshot: snapshot, sync: sync, runOpts: runOpts, library: library}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)

	auth := s.echo.Group("", s.sessionAuth)
	auth.POST("/react/start", s.handleReactStart)
	auth.GET("/react/stream", s.handleReactStream)
	auth.POST("/react/cancel", s.handleReactCancel)

	// Legacy aliases, same semantics.
	auth.POST("/realtime/start-process", s.handleReactStart)
	auth.GET("/realtime/stream/:id", s.handleReactStreamLegacy)
	auth.POST("/realtime/cancel/:id", s.handleReactCancelLegacy)

	auth.GET("/sync/status", s.handleSyncStatus)
	auth.POST("/sync/start", s.handleSyncStart)
	auth.POST("/sync/cancel", s.handleSyncCancel)
}

// ListenAndServe starts the server with the configured timeouts.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.echo.StartServer(srv)
}

// Echo exposes the underlying engine, for tests that want httptest.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	detail := map[string]any{}
	if s.snapshot != nil {
		if _, err := s.snapshot.CurrentReader(); err != nil {
			detail["snapshot"] = "no-snapshot"
		} else {
			detail["snapshot"] = "ready"
		}
	} else {
		detail["snapshot"] = "no-snapshot"
	}
	return c.JSON(http.StatusOK, map[string]any{"status": status, "details": detail})
}
