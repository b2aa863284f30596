// Package types provides shared types, interfaces, and errors for the application.
package types

import "errors"

// Sentinel errors for consistent error handling across the application.
// These errors can be checked with errors.Is() for type-safe error handling.
var (
	// Browser session errors
	ErrBrowserLaunch  = errors.New("browser failed to launch")
	ErrSessionClosed  = errors.New("browser session is closed")
	ErrBrowserCrashed = errors.New("browser process is not responding")

	// Batch errors
	ErrEmptyBatch    = errors.New("batch contains no urls")
	ErrInvalidBatch  = errors.New("request body is not a list of urls")
	ErrBatchInFlight = errors.New("a batch is already being rendered, retry later")

	// Request errors
	ErrURLRequired = errors.New("url is required")
	ErrInvalidURL  = errors.New("invalid url")

	// Transcription errors
	ErrNotYouTubeURL    = errors.New("url is not a valid YouTube url")
	ErrNoCaptions       = errors.New("no captions available for video")
	ErrTranscribeFailed = errors.New("transcription failed")
)

// BatchError provides detailed information about batch-level failures.
// Item-level failures never surface as errors; they become empty results.
type BatchError struct {
	Stage   string // The stage that failed: "decode", "admission", "launch"
	Message string // Human-readable error message
	Err     error  // Underlying error (for unwrapping)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// NewLaunchError creates an error for a browser launch failure that
// prevented any work from starting.
func NewLaunchError(err error) *BatchError {
	return &BatchError{
		Stage:   "launch",
		Message: "browser could not be launched; the session stays uninitialized so a later request may retry",
		Err:     err,
	}
}

// NewAdmissionError creates an error for a batch rejected by the request gate.
func NewAdmissionError() *BatchError {
	return &BatchError{
		Stage:   "admission",
		Message: "another batch is in flight; retry later",
		Err:     ErrBatchInFlight,
	}
}
