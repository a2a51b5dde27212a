// Package errors provides standardized error handling for the jobstream
// system: sentinel errors for the conditions the API surfaces, typed wrappers
// that carry job context, and classification helpers built on errors.Is/As.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// Job-related errors
	ErrJobNotFound       = errors.New("job not found")
	ErrJobAlreadyRunning = errors.New("job is already running")
	ErrJobNotRunning     = errors.New("job is not running")
	ErrInvalidJobSpec    = errors.New("invalid job specification")
	ErrJobTimeout        = errors.New("job execution timeout")

	// Streaming-related errors
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrHubClosed        = errors.New("hub is closed")

	// System-related errors
	ErrTimeout       = errors.New("operation timed out")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// JobError represents an error related to a specific job.
type JobError struct {
	JobID     string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: operation %s: %v", e.JobID, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// StreamError represents an error delivering events to one subscriber.
type StreamError struct {
	JobID        string
	SubscriberID string
	Err          error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: subscriber %s: %v", e.JobID, e.SubscriberID, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ConfigError represents an error related to configuration.
type ConfigError struct {
	Component string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Component, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors

func WrapJobError(jobID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{JobID: jobID, Operation: operation, Err: err}
}

func WrapStreamError(jobID, subscriberID string, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{JobID: jobID, SubscriberID: subscriberID, Err: err}
}

func WrapConfigError(component, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Component: component, Field: field, Err: err}
}

// Convenience constructors for common patterns

func NewJobNotFoundError(jobID string) error {
	return WrapJobError(jobID, "lookup", ErrJobNotFound)
}

func NewDuplicateJobError(jobID string) error {
	return WrapJobError(jobID, "start", ErrJobAlreadyRunning)
}

func NewConfigError(component, field string, err error) error {
	return WrapConfigError(component, field, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
}

// Classification helpers

func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrJobAlreadyRunning)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidJobSpec) || errors.Is(err, ErrInvalidConfig)
}

func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrJobTimeout)
}

// IsContextError reports whether err comes from context cancellation or
// deadline expiry, which streaming code treats as normal peer disconnection.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// GetJobID extracts the job id from a wrapped JobError.
func GetJobID(err error) (string, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je.JobID, true
	}
	return "", false
}

// JoinErrors combines multiple errors into a single error, dropping nils.
func JoinErrors(errs ...error) error {
	var validErrs []error
	for _, err := range errs {
		if err != nil {
			validErrs = append(validErrs, err)
		}
	}

	if len(validErrs) == 0 {
		return nil
	}
	if len(validErrs) == 1 {
		return validErrs[0]
	}

	return &multiError{errors: validErrs}
}

type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	msg := e.errors[0].Error()
	for _, err := range e.errors[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

func (e *multiError) Is(target error) bool {
	for _, err := range e.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *multiError) As(target interface{}) bool {
	for _, err := range e.errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
