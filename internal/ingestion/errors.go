package ingestion

import (
	"errors"
	"fmt"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
)

// ErrJobClaimed is returned when a job was already taken by another runner.
var ErrJobClaimed = errors.New("job already claimed")

// ValidationError is a row-scoped failure: a required field is missing, an
// enumerated value is out of range, or a properties blob is malformed.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

// ReferenceNotFoundError is a row-scoped failure: the row names an internal
// code that does not resolve to any persisted entity of the expected type.
type ReferenceNotFoundError struct {
	Field string
	Value string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("field %s: reference %q not found", e.Field, e.Value)
}

// toRowError converts a processing failure into the job's error record shape.
func toRowError(rowNumber int, err error) domain.RowError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return domain.RowError{
			Row:     rowNumber,
			Field:   validationErr.Field,
			Value:   validationErr.Value,
			Message: validationErr.Message,
		}
	}

	var refErr *ReferenceNotFoundError
	if errors.As(err, &refErr) {
		return domain.RowError{
			Row:     rowNumber,
			Field:   refErr.Field,
			Value:   refErr.Value,
			Message: fmt.Sprintf("reference %q not found", refErr.Value),
		}
	}

	return domain.RowError{Row: rowNumber, Message: err.Error()}
}
