package migrate

import (
	"context"

	"go.hackfix.me/dbmigrate/schema"
)

// Func is a migration step. The Builder is bound to the transaction the step
// runs in, or to the database connection if the migration isn't
// transactional.
type Func func(ctx context.Context, b *schema.Builder) error

// Kind tells whether a migration can be reverted.
type Kind int

// Migration kinds.
const (
	Irreversible Kind = iota
	Reversible
)

func (k Kind) String() string {
	if k == Reversible {
		return "reversible"
	}
	return "irreversible"
}

// Migration is a unit of schema change. It's created with NewIrreversible or
// NewReversible.
type Migration struct {
	kind Kind
	up   Func
	down Func
	noTx bool
}

// MigrationOption configures a Migration.
type MigrationOption func(*Migration)

// WithoutTransaction runs the migration steps outside of a transaction. Use it
// for statements that can't run in a transaction, such as
// CREATE INDEX CONCURRENTLY in PostgreSQL.
func WithoutTransaction() MigrationOption {
	return func(m *Migration) {
		m.noTx = true
	}
}

// NewIrreversible returns a migration that can only be applied.
func NewIrreversible(up Func, opts ...MigrationOption) Migration {
	m := Migration{kind: Irreversible, up: up}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewReversible returns a migration that can be applied and reverted.
func NewReversible(up, down Func, opts ...MigrationOption) Migration {
	m := Migration{kind: Reversible, up: up, down: down}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Kind returns the kind of the migration.
func (m Migration) Kind() Kind {
	return m.kind
}

// Transactional returns true if the steps run inside a transaction.
func (m Migration) Transactional() bool {
	return !m.noTx
}
