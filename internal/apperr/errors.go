// Package apperr defines the error conditions the core workflow reports.
// Handlers match these with errors.Is and map them to HTTP status codes.
package apperr

import "errors"

var (
	// ErrValidation covers caller mistakes: unknown angle, disallowed
	// content type, missing required fields. No state is changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned both for true absence and for authorization
	// denial, so unauthorized callers cannot probe for existence.
	ErrNotFound = errors.New("not found")

	// ErrMissingRequiredSegment rejects finalize/trigger attempts while the
	// mandatory normal-angle video has not been uploaded.
	ErrMissingRequiredSegment = errors.New("normal segment not uploaded")

	// ErrExternalSubmission means the analysis worker rejected the job or
	// was unreachable. The analysis is forced to FAILED before this is
	// returned.
	ErrExternalSubmission = errors.New("analysis job submission failed")

	// ErrArtifactUnavailable marks a single presign or fetch that failed.
	// Callers degrade the affected field to null and keep going.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
)
