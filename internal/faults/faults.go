// Package faults defines the error classes shared across the pipeline.
// Callers wrap these with fmt.Errorf("...: %w", ...) and test with errors.Is.
package faults

import "errors"

var (
	// ErrExternalService marks a failed embedding or chat-completion call.
	ErrExternalService = errors.New("external service error")

	// ErrStorage marks a failed database operation.
	ErrStorage = errors.New("storage error")

	// ErrConfiguration marks a non-retryable setup problem: missing
	// credentials, unknown repository, or an embedding dimensionality that
	// does not match the table definition.
	ErrConfiguration = errors.New("configuration error")
)

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}
