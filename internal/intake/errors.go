package intake

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionExists         = errors.New("session already exists")
	ErrConversationComplete  = errors.New("conversation already complete")
	ErrVersionConflict       = errors.New("conversation was modified concurrently")
	ErrValidation            = errors.New("validation failed")
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

// Stable reason codes returned to API clients
const (
	ReasonSessionNotFound        = "session_not_found"
	ReasonSessionExists          = "session_exists"
	ReasonConversationComplete   = "conversation_complete"
	ReasonValidation             = "validation_error"
	ReasonContactExpected        = "contact_expected"
	ReasonConversationIncomplete = "conversation_incomplete"
	ReasonDownstreamUnavailable  = "downstream_unavailable"
)

// Error pairs one of the sentinel errors above with a reason code and a
// human readable message.
type Error struct {
	Kind   error
	Reason string
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func validationError(reason, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the reason code for err, or "" for errors this package
// did not produce.
func ReasonOf(err error) string {
	var ie *Error
	if errors.As(err, &ie) && ie.Reason != "" {
		return ie.Reason
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return ReasonSessionNotFound
	case errors.Is(err, ErrSessionExists):
		return ReasonSessionExists
	case errors.Is(err, ErrConversationComplete):
		return ReasonConversationComplete
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrDownstreamUnavailable), errors.Is(err, ErrVersionConflict):
		return ReasonDownstreamUnavailable
	}
	return ""
}
