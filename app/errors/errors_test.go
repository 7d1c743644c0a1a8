package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/migrate"
)

func TestAttrs(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	batch := &migrate.BatchError{
		Op: migrate.OpApply, Completed: 1, Requested: 3, Failed: "m240101_120000_b", Err: boom,
	}

	tests := []struct {
		name     string
		err      error
		expAttrs []any
	}{
		{name: "ok/plain", err: boom, expAttrs: nil},
		{
			name:     "ok/fields_sorted",
			err:      NewWith("migration file already exists", "file", "/m/a.go", "dir", "/m"),
			expAttrs: []any{"dir", "/m", "file", "/m/a.go"},
		},
		{
			name:     "ok/cause_first",
			err:      NewWithCause("failed opening database", boom, "driver", "sqlite"),
			expAttrs: []any{"cause", "boom", "driver", "sqlite"},
		},
		{
			name: "ok/batch",
			err:  batch,
			expAttrs: []any{
				"op", "apply", "migration", "m240101_120000_b", "completed", 1, "requested", 3,
			},
		},
		{
			name:     "ok/wrapped_batch",
			err:      NewWithCause("failed migrating up", batch),
			expAttrs: []any{"cause", batch.Error(), "op", "apply", "migration", "m240101_120000_b", "completed", 1, "requested", 3},
		},
		{
			name:     "ok/name_too_long",
			err:      &migrate.NameTooLongError{Name: "m240101_120000_x", Limit: 10},
			expAttrs: []any{"migration", "m240101_120000_x", "limit", 10},
		},
		{
			name:     "ok/duplicate",
			err:      &migrate.DuplicateIdentifierError{Name: "m1", Paths: []string{"/a/m1.go", "/a/m1.sql"}},
			expAttrs: []any{"migration", "m1", "paths", "/a/m1.go,/a/m1.sql"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expAttrs, Attrs(tt.err))
		})
	}
}

func TestLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	Log(logger, NewWithCause("failed reverting", &migrate.BatchError{
		Op: migrate.OpRevert, Requested: 1, Failed: "m1", Err: errors.New("boom"),
	}))

	assert.Equal(t,
		`level=ERROR msg="failed reverting" cause="0 of 1 migration was reverted: migration 'm1' failed: boom" `+
			"op=revert migration=m1 completed=0 requested=1\n",
		buf.String())
}

func TestNewWithPanics(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "an even number of fields is required", func() { _ = NewWith("x", "key") })
	assert.PanicsWithValue(t, "keys must be strings", func() { _ = NewWith("x", 1, 2) })
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		exp  int
	}{
		{name: "ok/nil", err: nil, exp: ExitOK},
		{name: "ok/failure", err: errors.New("boom"), exp: ExitFailure},
		{name: "ok/validation", err: NewValidation(errors.New("bad")), exp: ExitValidation},
		{name: "ok/invalid_input", err: fmt.Errorf("x: %w", &types.InvalidInputError{Msg: "bad"}), exp: ExitValidation},
		{name: "ok/config", err: &migrate.ConfigError{Msg: "bad"}, exp: ExitValidation},
		{name: "ok/name_too_long", err: &migrate.NameTooLongError{Name: "m", Limit: 0}, exp: ExitValidation},
		{name: "ok/batch", err: &migrate.BatchError{Err: errors.New("boom")}, exp: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.exp, ExitCode(tt.err))
		})
	}
}
