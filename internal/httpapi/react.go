package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fctr-id/okta-ai-agent/internal/agent"
	"github.com/fctr-id/okta-ai-agent/internal/sse"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
)

type startRequest struct {
	Query string `json:"query"`
}

type startResponse struct {
	ProcessID string `json:"process_id"`
}

// handleReactStart launches the agent loop on a background goroutine and
// returns immediately with the process id the client streams from. It
// never blocks on the LLM.
func (s *Server) handleReactStart(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	sink := sse.NewChannelSink(256)
	sess := agent.NewSession(c.Response().Header().Get(echo.HeaderXRequestID))
	if s.library != nil {
		if lib, err := s.library.Load(c.Request().Context(), sess.ID); err == nil && lib != nil {
			sess.Library = lib
		}
	}
	sess.Transcript = append(sess.Transcript, &model.Message{
		Role:  model.ConversationRoleUser,
		Parts: []model.Part{model.TextPart{Text: req.Query}},
	})

	processID := s.sessions.Start(sess, sink)

	runCtx, cancel := context.WithCancel(context.Background())
	s.sessions.SetCancel(processID, cancel)

	opts := s.runOpts
	go func() {
		defer cancel()
		agent.Run(runCtx, opts, sess, sink)
		if s.library != nil {
			// Use a fresh context: runCtx may already be cancelled by
			// /react/cancel, but the library save should still happen.
			_ = s.library.Save(context.Background(), sess.Library)
		}
		s.sessions.Forget(processID)
	}()

	return c.JSON(http.StatusOK, startResponse{ProcessID: processID})
}

// handleReactStream opens the SSE stream for an already-started process,
// draining its sink until the loop closes it.
func (s *Server) handleReactStream(c echo.Context) error {
	return s.streamProcess(c, c.QueryParam("process_id"))
}

func (s *Server) handleReactStreamLegacy(c echo.Context) error {
	return s.streamProcess(c, c.Param("id"))
}

func (s *Server) streamProcess(c echo.Context, processID string) error {
	if processID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "process_id is required")
	}
	_, sink, ok := s.sessions.Lookup(processID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown process")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range sink.Events() {
		frame, err := sse.EncodeSSE(event)
		if err != nil {
			continue
		}
		if _, err := w.Write(frame); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}

type cancelRequest struct {
	ProcessID string `json:"process_id"`
}

func (s *Server) handleReactCancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil || req.ProcessID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "process_id is required")
	}
	return s.cancelProcess(c, req.ProcessID)
}

func (s *Server) handleReactCancelLegacy(c echo.Context) error {
	return s.cancelProcess(c, c.Param("id"))
}

func (s *Server) cancelProcess(c echo.Context, processID string) error {
	if !s.sessions.Cancel(processID) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown process")
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": true})
}
