package errors

import "errors"

// StructuredError is an error with fields that are logged alongside its
// message, and an optional cause.
type StructuredError struct {
	err    error
	fields map[string]any
	cause  error
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	return e.err.Error()
}

// Unwrap allows errors.Is and errors.As to work on both the error and its
// cause.
func (e *StructuredError) Unwrap() []error {
	errs := []error{e.err}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// NewWith creates a StructuredError from a message and key-value pairs.
func NewWith(msg string, fields ...any) *StructuredError {
	return &StructuredError{err: errors.New(msg), fields: toFields(fields)}
}

// NewWithCause creates a StructuredError from a message, the error that caused
// it, and key-value pairs.
func NewWithCause(msg string, cause error, fields ...any) *StructuredError {
	return &StructuredError{err: errors.New(msg), fields: toFields(fields), cause: cause}
}

func toFields(kv []any) map[string]any {
	if len(kv)%2 != 0 {
		panic("an even number of fields is required")
	}
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("keys must be strings")
		}
		fields[key] = kv[i+1]
	}
	return fields
}
