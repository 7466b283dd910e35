package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/leadintake/internal/api/auth"
	"github.com/leadintake/internal/intake"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// errorHandler renders every handler error as an ErrorResponse
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("path", c.Path()).
			Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func classify(err error) (int, ErrorResponse) {
	if reason := intake.ReasonOf(err); reason != "" {
		switch reason {
		case intake.ReasonSessionExists:
			return http.StatusConflict, ErrorResponse{Error: err.Error(), Reason: reason}
		case intake.ReasonDownstreamUnavailable:
			return http.StatusInternalServerError, ErrorResponse{Error: "Service temporarily unavailable, please retry", Reason: reason}
		default:
			return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: reason}
		}
	}

	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: "validation_error"}
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, ErrorResponse{Error: "Email already registered", Reason: "duplicate_email"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password", Reason: "invalid_credentials"}
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Reason: "unauthorized"}
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests", Reason: "rate_limited"}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, ErrorResponse{Error: msg, Reason: httpReason(he.Code)}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Reason: "internal_error"}
}

func httpReason(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "body_too_large"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if code >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "request_error"
}
