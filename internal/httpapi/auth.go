package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// sessionCookieName is the cookie carrying the opaque session row id.
const sessionCookieName = "okta_ai_agent_session"

// sessionAuth rejects requests without a valid, unexpired session row.
// Session/auth endpoint implementations themselves are outside core
// scope; this middleware only enforces the contract that every route but
// /health requires one.
func (s *Server) sessionAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing session cookie")
		}
		row, ok, err := s.ops.GetSession(c.Request().Context(), cookie.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "session lookup failed")
		}
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown session")
		}
		if !row.ExpiresAt.IsZero() && time.Now().After(row.ExpiresAt) {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		c.Set("session_row_id", row.ID)
		c.Set("session_user_id", row.UserID)
		return next(c)
	}
}
