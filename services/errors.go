package services

import "errors"

var (
	ErrInvalidPrompt = errors.New("prompt must be between 3 and 1000 characters")
	ErrEmptyCatalog  = errors.New("game catalog is empty")
	ErrGameNotFound  = errors.New("game not found")
	ErrShareNotFound = errors.New("share not found")
	// ErrShareExpired is distinct from ErrShareNotFound so callers can
	// answer 410 instead of 404.
	ErrShareExpired = errors.New("share expired")
)
