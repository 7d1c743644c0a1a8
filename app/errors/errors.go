package errors

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"go.hackfix.me/dbmigrate/migrate"
)

// Log logs err with the fields of every structured or migration error in its
// chain.
func Log(logger *slog.Logger, err error) {
	logger.Error(err.Error(), Attrs(err)...)
}

// Attrs returns the slog key-value pairs describing err. The cause of a
// StructuredError comes first, followed by its fields sorted by key, and the
// details of migration errors.
func Attrs(err error) []any {
	var args []any

	var serr *StructuredError
	if errors.As(err, &serr) {
		if serr.cause != nil {
			args = append(args, "cause", serr.cause.Error())
		}
		keys := make([]string, 0, len(serr.fields))
		for k := range serr.fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			args = append(args, k, serr.fields[k])
		}
	}

	var (
		berr *migrate.BatchError
		nerr *migrate.NameTooLongError
		derr *migrate.DuplicateIdentifierError
		ferr *migrate.NotFoundError
	)
	if errors.As(err, &berr) {
		args = append(args,
			"op", string(berr.Op),
			"migration", berr.Failed,
			"completed", berr.Completed,
			"requested", berr.Requested,
		)
	}
	if errors.As(err, &nerr) {
		args = append(args, "migration", nerr.Name, "limit", nerr.Limit)
	}
	if errors.As(err, &derr) {
		args = append(args, "migration", derr.Name, "paths", strings.Join(derr.Paths, ","))
	}
	if errors.As(err, &ferr) {
		args = append(args, "migration", ferr.Name)
	}

	return args
}
