// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidImport     = errors.New("invalid import")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyCollection   = errors.New("knowledge base is empty")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrEmptyContent      = errors.New("item has no content")
	ErrAIDisabled        = errors.New("AI features are disabled: no API key configured")
	ErrEmptyResponse     = errors.New("empty response from AI model")
)
