package domain

import "errors"

var (
	// ErrMalformedRecord is returned when a raw record is missing a required field
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownCategory is returned when no normalizer is registered for a category
	ErrUnknownCategory = errors.New("no normalizer registered for category")

	// ErrInvalidRules is returned when a rule document fails validation
	ErrInvalidRules = errors.New("invalid rule set")

	// ErrNotFound is returned when a stored entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)
