package event

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationCode categorizes validation failures.
type ValidationCode string

const (
	// CodeInvalidPartition indicates a partition id that is not positive.
	CodeInvalidPartition ValidationCode = "INVALID_PARTITION"

	// CodeUnknownType indicates an event type outside of Types.
	CodeUnknownType ValidationCode = "UNKNOWN_TYPE"

	// CodeMissingPayload indicates a nil payload.
	CodeMissingPayload ValidationCode = "MISSING_PAYLOAD"

	// CodeTypeMismatch indicates a payload that belongs to another type.
	CodeTypeMismatch ValidationCode = "TYPE_MISMATCH"

	// CodeMalformedPayload indicates a payload document that could not be decoded.
	CodeMalformedPayload ValidationCode = "MALFORMED_PAYLOAD"

	// CodeMissingRef indicates a required actor, entity or match reference is absent.
	CodeMissingRef ValidationCode = "MISSING_REF"

	// CodeInvalidField indicates a payload field violating its schema constraint.
	CodeInvalidField ValidationCode = "INVALID_FIELD"

	// CodeInvalidMetadata indicates metadata that cannot be canonicalized.
	CodeInvalidMetadata ValidationCode = "INVALID_METADATA"
)

// ValidationError reports a malformed append request. It is a caller bug and
// is never retried; no sequence number is consumed when it is returned.
type ValidationError struct {
	Code        ValidationCode
	PartitionID int64
	Type        Type
	Field       string
	Message     string

	// Batched is set when the error comes from a batch append; Index is the
	// position of the offending draft.
	Batched bool
	Index   int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.PartitionID != 0 {
		ctx = append(ctx, fmt.Sprintf("partition=%d", e.PartitionID))
	}
	if e.Type != "" {
		ctx = append(ctx, fmt.Sprintf("type=%s", e.Type))
	}
	if e.Field != "" {
		ctx = append(ctx, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Batched {
		ctx = append(ctx, fmt.Sprintf("index=%d", e.Index))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	return b.String()
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation extracts a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func invalid(code ValidationCode, t Type, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Type:    t,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
