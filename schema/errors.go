package schema

import "fmt"

// NotSupportedError is returned for operations a database engine can't
// perform.
type NotSupportedError struct {
	Dialect   string
	Operation string
}

// Error returns a string representation of the error.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by %s", e.Operation, e.Dialect)
}
