package core

import "errors"

// Error codes for session errors.
const (
	ErrCodeValidation = "validation"
	ErrCodeProtocol   = "protocol"
	ErrCodeConnection = "connection"
)

// User-facing error texts produced locally.
const (
	ValidationText     = "Please select at least one interest and agree to the disclaimer."
	ConnectionLostText = "Connection to server lost."
	dialFailedText     = "Could not connect to server."
)

var (
	// ErrValidation matches any local precondition failure.
	ErrValidation = &SessionError{Code: ErrCodeValidation}
	// ErrProtocol matches any server-emitted error.
	ErrProtocol = &SessionError{Code: ErrCodeProtocol}
	// ErrConnection matches dial failures and unexpected channel loss.
	ErrConnection = &SessionError{Code: ErrCodeConnection}

	// ErrSessionClosed is returned by intents issued after Run has returned.
	ErrSessionClosed = errors.New("session closed")
)

// SessionError wraps a code and human-readable message.
type SessionError struct {
	Code    string
	Message string
}

func (e *SessionError) Error() string {
	if e.Message == "" {
		return e.Code + " error"
	}
	return e.Message
}

// Is lets errors.Is match any error of the same code against the sentinels above.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func sessionError(code, msg string) *SessionError {
	return &SessionError{Code: code, Message: msg}
}
