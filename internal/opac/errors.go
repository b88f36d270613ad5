package opac

import (
	"errors"
	"fmt"
)

// UnreachableError is a transport failure (dns, tls, timeout, connection) or
// a response with an infrastructure error status.
type UnreachableError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UnreachableError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("unreachable: %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("unreachable: %s: %v", e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// ProtocolError means a response was received but a marker the adapter
// depends on could not be found in it.
type ProtocolError struct {
	Adapter string
	Op      string
	Marker  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: could not find %s", e.Adapter, e.Op, e.Marker)
}

// CredentialError is a rejected login, Message is the site's own text.
type CredentialError struct {
	Message string
}

func (e *CredentialError) Error() string {
	if e.Message == "" {
		return "login rejected"
	}
	return e.Message
}

type Reason string

const (
	ReasonNoCriteria      Reason = "no-criteria"
	ReasonTooManyCriteria Reason = "too-many-criteria"
	ReasonNotReservable   Reason = "not-reservable"
	ReasonSessionExpired  Reason = "session-expired"
	ReasonNoSearch        Reason = "no-search"
	ReasonInvalidPosition Reason = "invalid-position"
	ReasonNotSupported    Reason = "not-supported"
	ReasonNotConfigured   Reason = "not-configured"
	ReasonSiteMessage     Reason = "site-message"
)

// OpacError is an expected business outcome the user can react to.
type OpacError struct {
	Reason  Reason
	Message string
	// Limit is the criteria limit for ReasonTooManyCriteria.
	Limit int
}

func (e *OpacError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func NewOpacError(reason Reason, message string) *OpacError {
	return &OpacError{Reason: reason, Message: message}
}

func TooManyCriteria(limit int) *OpacError {
	return &OpacError{
		Reason:  ReasonTooManyCriteria,
		Message: fmt.Sprintf("at most %d search criteria may be given", limit),
		Limit:   limit,
	}
}

// IsReason reports whether err wraps an OpacError with the given reason.
func IsReason(err error, reason Reason) bool {
	var opacErr *OpacError
	if errors.As(err, &opacErr) {
		return opacErr.Reason == reason
	}
	return false
}

// UserMessage returns the text that should be shown for err at the end of a
// failed workflow step. Site supplied messages are returned verbatim.
func UserMessage(err error) string {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr.Error()
	}
	var opacErr *OpacError
	if errors.As(err, &opacErr) && opacErr.Message != "" {
		return opacErr.Message
	}
	return err.Error()
}
