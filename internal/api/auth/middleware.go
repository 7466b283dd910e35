package auth

import (
	"github.com/labstack/echo/v4"
)

// RequireAuth rejects requests without a live session token and stores the
// contractor id in the echo context.
func RequireAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return ErrUnauthenticated
			}

			contractorID, err := tokens.Authenticate(token)
			if err != nil {
				return ErrUnauthenticated
			}

			c.Set(string(ContractorIDContextKey), contractorID)
			c.Set(string(TokenContextKey), token)
			return next(c)
		}
	}
}
