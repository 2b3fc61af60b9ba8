package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/opsmeta"
)

// SyncWriter is implemented by the graph sync pipeline; it is kept as a
// narrow interface here so the HTTP layer does not depend on the sync
// package's concrete scraping logic.
type SyncWriter interface {
	// Run performs one full sync against tenantID, writing progress via
	// the opsmeta row named by syncID as it completes each entity label,
	// and promoting the resulting snapshot version on success.
	Run(ctx context.Context, tenantID, syncID string) error
}

// SyncController serializes sync start/cancel requests against the
// single-writer snapshot engine: only one sync may run at a time, a
// direct expression of the engine's exclusive staging directory.
type SyncController struct {
	ops      opsmeta.Client
	snapshot *graphsnapshot.Engine
	writer   SyncWriter
	tenantID string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSyncController builds a controller bound to one tenant; this system
// manages a single tenant's snapshot per process.
func NewSyncController(ops opsmeta.Client, snapshot *graphsnapshot.Engine, writer SyncWriter, tenantID string) *SyncController {
	return &SyncController{ops: ops, snapshot: snapshot, writer: writer, tenantID: tenantID}
}

func (s *Server) handleSyncStatus(c echo.Context) error {
	ctx := c.Request().Context()
	if row, ok, err := s.ops.GetActiveSync(ctx, s.sync.tenantID); err == nil && ok {
		return c.JSON(http.StatusOK, row)
	}
	row, ok, err := s.ops.GetLastCompletedSync(ctx, s.sync.tenantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"status": "never_run"})
	}
	return c.JSON(http.StatusOK, row)
}

func (s *Server) handleSyncStart(c echo.Context) error {
	ctrl := s.sync
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	ctx := c.Request().Context()
	if _, ok, err := ctrl.ops.GetActiveSync(ctx, ctrl.tenantID); err == nil && ok {
		return echo.NewHTTPError(http.StatusConflict, "a sync is already running")
	}

	syncID, err := ctrl.ops.CreateSync(ctx, ctrl.tenantID, opsmeta.SyncKindSnapshot)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ctrl.cancel = cancel
	go func() {
		defer cancel()
		_ = ctrl.writer.Run(runCtx, ctrl.tenantID, syncID)
	}()

	return c.JSON(http.StatusOK, map[string]string{"sync_id": syncID})
}

func (s *Server) handleSyncCancel(c echo.Context) error {
	ctrl := s.sync
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.cancel == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no sync running")
	}
	ctrl.cancel()
	ctrl.cancel = nil
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": true})
}
