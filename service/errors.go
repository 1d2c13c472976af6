package service

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package matches exactly one of
// them through errors.Is.
var (
	ErrUnauthorized               = errors.New("unauthorized")
	ErrValidation                 = errors.New("validation failed")
	ErrNotFound                   = errors.New("not found")
	ErrConflictOrAlreadyProcessed = errors.New("conflict")
	ErrUpstreamFailure            = errors.New("upstream failure")
	ErrInternal                   = errors.New("internal error")
)

var (
	ErrPayloadTooLarge           = classed(ErrValidation, "File too large")
	ErrUnsupportedMediaType      = classed(ErrValidation, "Invalid file type. Only MP3 and WAV are allowed.")
	ErrMissingField              = classed(ErrValidation, "Missing required field")
	ErrIncompleteSession         = classed(ErrValidation, "Not all chunks received")
	ErrNotFoundOrUnauthorized    = classed(ErrNotFound, "Recording not found or unauthorized")
	ErrSessionNotFound           = classed(ErrNotFound, "Session not found")
	ErrInvalidOrAlreadyProcessed = classed(ErrConflictOrAlreadyProcessed, "Invalid or already processed recording")
	ErrHashingFailed             = classed(ErrInternal, "Failed to compute file hash")
	ErrSessionOwnerMismatch      = classed(ErrUnauthorized, "Unauthorized access to session")
	// ErrProcessingFailed marks a failure already recorded on the recording.
	ErrProcessingFailed          = classed(ErrUpstreamFailure, "Processing failed")
)

type classedError struct {
	class error
	msg   string
}

func classed(class error, msg string) error {
	return &classedError{class: class, msg: msg}
}

func (e *classedError) Error() string {
	return e.msg
}

func (e *classedError) Unwrap() error {
	return e.class
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func upstream(err error) error {
	return errors.Join(ErrUpstreamFailure, err)
}
