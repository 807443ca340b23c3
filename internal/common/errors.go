// Package common defines shared constants and sentinel errors used across
// the imagehost server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// ErrorGone reports a link that existed but has expired.
	ErrorGone = errors.New("gone")

	// ErrorBadRequest reports a caller-supplied parameter outside its
	// accepted range (link duration, thumbnail height, upload format).
	ErrorBadRequest = errors.New("bad request")

	// ErrMissingDimensions means an image row has no cached width/height.
	// It is an upload-time integrity problem, not a caller error.
	ErrMissingDimensions = errors.New("image dimensions missing")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
