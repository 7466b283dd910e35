package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	ContractorIDContextKey ContextKey = "contractor_id"
	TokenContextKey        ContextKey = "session_token"
)

// ContractorID returns the authenticated contractor set by RequireAuth
func ContractorID(c echo.Context) (int64, bool) {
	id, ok := c.Get(string(ContractorIDContextKey)).(int64)
	return id, ok
}

// bearerToken accepts "Bearer <token>" or the bare token
func bearerToken(c echo.Context) string {
	h := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}
