package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AuthHandlers contains the authentication handler methods
type AuthHandlers struct {
	service *Service
}

// NewAuthHandlers creates a new authentication handlers instance
func NewAuthHandlers(service *Service) *AuthHandlers {
	return &AuthHandlers{service: service}
}

// RegisterRequest represents the register request body
type RegisterRequest struct {
	Name     *string `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// badRequest marks a body that could not be decoded
func badRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
}

// Register handles contractor sign-up
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	contractor, err := h.service.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"contractorId": contractor.ID,
	})
}

// Login handles contractor authentication with email/password
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	tok, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"token":     tok.Token,
		"tokenType": tok.TokenType,
		"expiresAt": tok.ExpiresAt,
	})
}

// Logout revokes the session behind the presented token. Must run behind
// RequireAuth.
func (h *AuthHandlers) Logout(c echo.Context) error {
	token, _ := c.Get(string(TokenContextKey)).(string)
	if err := h.service.Logout(token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}
