package domain

import "errors"

// Chat core errors.
var (
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrMessageTooLong       = errors.New("message text exceeds 4000 characters")
	ErrNoActiveConversation = errors.New("no conversation selected")
	ErrUnknownConversation  = errors.New("unknown conversation")
	ErrSessionClosed        = errors.New("chat session closed")
	ErrSessionNotStarted    = errors.New("chat session not started")
	ErrRateLimited          = errors.New("sending too fast")
)

// Development peer errors.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)
