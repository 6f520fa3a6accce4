package common

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxDatasetNameLength is the longest dataset name dtool accepts
const MaxDatasetNameLength = 80

var datasetNameRe = regexp.MustCompile(`^[0-9a-zA-Z._-]+$`)

// IsUUID reports whether s is a UUID in canonical 8-4-4-4-12 hex form.
// The looser forms accepted by uuid.Parse (braces, urn prefix, no dashes) are rejected.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidateUUID returns a ValidationError unless s is a canonical UUID
func ValidateUUID(s string) error {
	if !IsUUID(s) {
		return NewValidationError("uuid", s, "not a canonical 8-4-4-4-12 hex UUID")
	}
	return nil
}

// IsValidDatasetName reports whether name satisfies dtool's naming rule
func IsValidDatasetName(name string) bool {
	return len(name) <= MaxDatasetNameLength && datasetNameRe.MatchString(name)
}

// ValidateDatasetName validates a dataset name for creation
func ValidateDatasetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDatasetName, NewValidationError("dataset name", name, "cannot be empty"))
	}
	if len(name) > MaxDatasetNameLength {
		return fmt.Errorf("%w: %w", ErrInvalidDatasetName,
			NewValidationError("dataset name", name, fmt.Sprintf("longer than %d characters", MaxDatasetNameLength)))
	}
	if !datasetNameRe.MatchString(name) {
		return fmt.Errorf("%w: %w", ErrInvalidDatasetName,
			NewValidationError("dataset name", name, "only 0-9 a-z A-Z . _ - are allowed"))
	}
	return nil
}

// ValidateRequiredString validates that a string is not empty
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(fieldName, value, "cannot be empty")
	}
	return nil
}
