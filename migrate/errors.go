package migrate

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when a migration can't be resolved to something
// that can be run.
type NotFoundError struct {
	Name string
	Msg  string
}

// Error returns a string representation of the error.
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("migration '%s' not found", e.Name)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// IrreversibleError is returned when reverting a migration that has no down
// step.
type IrreversibleError struct {
	Name string
}

// Error returns a string representation of the error.
func (e *IrreversibleError) Error() string {
	return fmt.Sprintf("migration '%s' is irreversible", e.Name)
}

// DuplicateIdentifierError is returned when the same migration name is found
// in more than one file.
type DuplicateIdentifierError struct {
	Name  string
	Paths []string
}

// Error returns a string representation of the error.
func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate migration '%s' found in: %s", e.Name, strings.Join(e.Paths, ", "))
}

// NameTooLongError is returned when a migration name doesn't fit in the
// history table.
type NameTooLongError struct {
	Name  string
	Limit int
}

// Error returns a string representation of the error.
func (e *NameTooLongError) Error() string {
	return fmt.Sprintf("the migration name is too long: %d characters, the limit is %d", len(e.Name), e.Limit)
}

// ConfigError is returned for invalid or missing configuration.
type ConfigError struct {
	Msg string
}

// Error returns a string representation of the error.
func (e *ConfigError) Error() string {
	return e.Msg
}

// BatchError is returned when a step of a batch fails. The steps before it
// remain applied or reverted.
type BatchError struct {
	Op        Op
	Completed int
	Requested int
	Failed    string
	Err       error
}

// Error returns a string representation of the error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d %s %s: migration '%s' failed: %s",
		e.Completed, e.Requested, pluralize(e.Requested, "migration was", "migrations were"),
		e.Op.pastTense(), e.Failed, e.Err)
}

// Unwrap returns the error of the failed step.
func (e *BatchError) Unwrap() error {
	return e.Err
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
