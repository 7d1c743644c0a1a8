package migrate

import (
	"errors"
	"log/slog"
	"time"

	"go.hackfix.me/dbmigrate/models"
	"go.hackfix.me/dbmigrate/schema"
)

// Option is a function that allows configuring the Migrator.
type Option func(*Migrator) error

// WithLogger sets the logger used by the Migrator.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) error {
		m.logger = logger.With("component", "migrator")
		return nil
	}
}

// WithObserver sets the Observer notified of migration state changes.
func WithObserver(obs Observer) Option {
	return func(m *Migrator) error {
		m.observer = obs
		return nil
	}
}

// WithInformer sets the Informer notified of each schema command.
func WithInformer(inf schema.Informer) Option {
	return func(m *Migrator) error {
		m.informer = inf
		return nil
	}
}

// WithTablePrefix sets the prefix of table names written as {{%name}}.
func WithTablePrefix(prefix string) Option {
	return func(m *Migrator) error {
		m.tablePrefix = prefix
		return nil
	}
}

// WithHistoryTable sets the name of the history table.
func WithHistoryTable(table string) Option {
	return func(m *Migrator) error {
		if table == "" {
			return &ConfigError{Msg: "the history table name can't be empty"}
		}
		m.historyTable = table
		return nil
	}
}

// WithMaxNameLength sets the maximum length of migration names. 0 means that
// the limit is read from the history table.
func WithMaxNameLength(n int) Option {
	return func(m *Migrator) error {
		if n < 0 {
			return &ConfigError{Msg: "the maximum migration name length can't be negative"}
		}
		m.maxNameLength = n
		return nil
	}
}

// WithTimeSource sets the source of the apply times recorded in history.
func WithTimeSource(ts models.TimeSource) Option {
	return func(m *Migrator) error {
		if ts == nil {
			return errors.New("nil time source")
		}
		m.timeSource = ts
		return nil
	}
}

// DefaultOptions returns the default Migrator options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithHistoryTable("{{%migration}}"),
		WithTimeSource(models.TimeSourceFunc(time.Now)),
	}
}
