package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyDocID      = errors.New("document ID cannot be empty")
	ErrEmptyChunkID    = errors.New("chunk ID cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrInvalidScore    = errors.New("score must be between 0 and 1")
	ErrNonScalarFilter = errors.New("filter values must be scalars")
)
