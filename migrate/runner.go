package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.hackfix.me/dbmigrate/models"
	"go.hackfix.me/dbmigrate/schema"
)

// DB is the database the migrations run against. It's satisfied by *sql.DB.
type DB interface {
	schema.Executor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Op is a migration operation.
type Op string

// Migration operations.
const (
	OpApply  Op = "apply"
	OpRevert Op = "revert"
)

func (o Op) pastTense() string {
	if o == OpRevert {
		return "reverted"
	}
	return "applied"
}

// State is the state of a migration during an operation.
type State string

// Migration states.
const (
	StatePending   State = "pending"
	StateApplying  State = "applying"
	StateApplied   State = "applied"
	StateReverting State = "reverting"
	StateReverted  State = "reverted"
	StateFailed    State = "failed"
)

// Event is a state change of a migration.
type Event struct {
	Name  string
	Op    Op
	State State
	// Duration is the time elapsed since the operation started. It's zero for
	// the initial transition.
	Duration time.Duration
	Err      error
}

// Observer is notified of migration state changes.
type Observer interface {
	Observe(Event)
}

// ObserverFunc is an adapter to use a function as an Observer.
type ObserverFunc func(Event)

// Observe implements the Observer interface.
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// BatchResult is the outcome of ApplyAll or RevertAll.
type BatchResult struct {
	Requested int
	Completed int
	// Failed is the name of the migration that stopped the batch, if any.
	Failed string
}

// Migrator applies and reverts migrations, and records them in history.
type Migrator struct {
	db         DB
	dialect    schema.Dialect
	builder    *schema.Builder
	history    *History
	discoverer *Discoverer
	observer   Observer
	informer   schema.Informer
	logger     *slog.Logger

	tablePrefix   string
	historyTable  string
	maxNameLength int
	timeSource    models.TimeSource
}

// NewMigrator returns a new Migrator.
func NewMigrator(db DB, dialect schema.Dialect, disc *Discoverer, opts ...Option) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if dialect == nil {
		return nil, errors.New("database dialect is required")
	}
	if disc == nil {
		return nil, errors.New("migration discoverer is required")
	}

	m := &Migrator{db: db, dialect: dialect, discoverer: disc}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	bopts := []schema.Option{schema.WithTablePrefix(m.tablePrefix)}
	if m.informer != nil {
		bopts = append(bopts, schema.WithInformer(m.informer))
	}
	m.builder = schema.NewBuilder(db, dialect, bopts...)
	m.history = NewHistory(m.builder.WithInformer(schema.NopInformer{}),
		m.historyTable, m.maxNameLength, m.timeSource)

	return m, nil
}

// History returns the history tracker.
func (m *Migrator) History() *History {
	return m.history
}

// Builder returns the schema builder bound to the database.
func (m *Migrator) Builder() *schema.Builder {
	return m.builder
}

// Discoverer returns the migration discoverer.
func (m *Migrator) Discoverer() *Discoverer {
	return m.discoverer
}

// Applied returns up to limit applied migrations, most recent first.
func (m *Migrator) Applied(ctx context.Context, limit int) ([]Record, error) {
	return m.history.Applied(ctx, limit)
}

// Pending returns the migrations that haven't been applied, oldest first.
func (m *Migrator) Pending(ctx context.Context) ([]Source, error) {
	applied, err := m.history.Applied(ctx, 0)
	if err != nil {
		return nil, err
	}
	return m.discoverer.Pending(ctx, applied)
}

// Apply runs the up step of a migration and records it in history.
func (m *Migrator) Apply(ctx context.Context, name string) error {
	_, err := m.ApplyAll(ctx, []string{name})
	return unwrapBatch(err)
}

// Revert runs the down step of a migration and removes it from history.
func (m *Migrator) Revert(ctx context.Context, name string) error {
	_, err := m.RevertAll(ctx, []string{name})
	return unwrapBatch(err)
}

// ApplyAll applies the migrations in the given order. It stops at the first
// failure, and leaves the migrations applied before it in place.
func (m *Migrator) ApplyAll(ctx context.Context, names []string) (BatchResult, error) {
	return m.batch(ctx, OpApply, names)
}

// RevertAll reverts the migrations in the given order. It stops at the first
// failure, and leaves the migrations reverted before it in place.
func (m *Migrator) RevertAll(ctx context.Context, names []string) (BatchResult, error) {
	return m.batch(ctx, OpRevert, names)
}

func (m *Migrator) batch(ctx context.Context, op Op, names []string) (BatchResult, error) {
	res := BatchResult{Requested: len(names)}
	if len(names) == 0 {
		return res, nil
	}

	if err := m.history.Ensure(ctx); err != nil {
		return res, err
	}

	sources, err := m.discoverer.Discover(ctx)
	if err != nil {
		return res, err
	}
	index := make(map[string]Source, len(sources))
	for _, src := range sources {
		index[src.Name] = src
	}

	for _, name := range names {
		src, ok := index[name]
		if !ok {
			src = Source{Name: name}
		}

		if op == OpApply {
			err = m.apply(ctx, src)
		} else {
			err = m.revert(ctx, src)
		}
		if err != nil {
			res.Failed = name
			return res, &BatchError{
				Op: op, Completed: res.Completed, Requested: res.Requested,
				Failed: name, Err: err,
			}
		}
		res.Completed++
	}

	return res, nil
}

func (m *Migrator) apply(ctx context.Context, src Source) error {
	return m.step(ctx, OpApply, src, func(mig Migration) (Func, func(context.Context, schema.Executor) error, error) {
		record := func(ctx context.Context, exec schema.Executor) error {
			return m.history.recordApplied(ctx, exec, src.Name)
		}
		return mig.up, record, nil
	})
}

func (m *Migrator) revert(ctx context.Context, src Source) error {
	return m.step(ctx, OpRevert, src, func(mig Migration) (Func, func(context.Context, schema.Executor) error, error) {
		if mig.Kind() != Reversible {
			return nil, nil, &IrreversibleError{Name: src.Name}
		}
		record := func(ctx context.Context, exec schema.Executor) error {
			return m.history.recordReverted(ctx, exec, src.Name)
		}
		return mig.down, record, nil
	})
}

type stepPlan func(Migration) (run Func, record func(context.Context, schema.Executor) error, err error)

// step runs a single migration step and its history change, inside a
// transaction if the migration is transactional.
func (m *Migrator) step(ctx context.Context, op Op, src Source, plan stepPlan) (err error) {
	running, done := StateApplying, StateApplied
	if op == OpRevert {
		running, done = StateReverting, StateReverted
	}

	logger := m.logger.With("migration", src.Name, "op", op)
	start := time.Now()
	m.notify(Event{Name: src.Name, Op: op, State: running})
	logger.Debug("running migration")

	defer func() {
		elapsed := time.Since(start)
		if err != nil {
			m.notify(Event{Name: src.Name, Op: op, State: StateFailed, Duration: elapsed, Err: err})
			logger.Error("migration failed", "duration", elapsed, "error", err)
			return
		}
		m.notify(Event{Name: src.Name, Op: op, State: done, Duration: elapsed})
		logger.Info(fmt.Sprintf("%s migration", op.pastTense()), "duration", elapsed)
	}()

	mig, err := m.discoverer.Resolve(src)
	if err != nil {
		return err
	}
	run, record, err := plan(mig)
	if err != nil {
		return err
	}

	restore := m.builder.Inspector().Suspend()
	defer restore()

	if !mig.Transactional() {
		if err = run(ctx, m.builder); err != nil {
			return err
		}
		return record(ctx, m.db)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				logger.Warn("failed rolling back transaction", "error", rerr)
			}
		}
	}()

	if err = run(ctx, m.builder.WithExecutor(tx)); err != nil {
		return err
	}
	if err = record(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed committing transaction: %w", err)
	}

	return nil
}

// MarkApplied records migrations as applied without running them.
func (m *Migrator) MarkApplied(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := m.history.RecordApplied(ctx, name); err != nil {
			return err
		}
		m.logger.Info("marked migration as applied", "migration", name)
	}
	return nil
}

// MarkReverted removes migrations from history without running them.
func (m *Migrator) MarkReverted(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := m.history.RecordReverted(ctx, name); err != nil {
			return err
		}
		m.logger.Info("marked migration as reverted", "migration", name)
	}
	return nil
}

// DropAllTables drops every table of the current schema, including the history
// table, with foreign key checks disabled. It returns the dropped tables.
func (m *Migrator) DropAllTables(ctx context.Context) (dropped []string, rerr error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed acquiring database connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed releasing database connection: %w", err)
		}
	}()

	if stmt := m.dialect.ForeignKeyChecks(false); stmt != "" {
		if _, err = conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed disabling foreign key checks: %w", err)
		}
		defer func() {
			if _, err := conn.ExecContext(ctx, m.dialect.ForeignKeyChecks(true)); err != nil && rerr == nil {
				rerr = fmt.Errorf("failed enabling foreign key checks: %w", err)
			}
		}()
	}

	tables, err := m.dialect.TableNames(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed listing tables: %w", err)
	}

	b := m.builder.WithExecutor(conn)
	defer func() {
		b.Inspector().Refresh()
		m.history.reset()
	}()
	for _, t := range tables {
		if err = b.DropTableCascade(ctx, t); err != nil {
			return dropped, fmt.Errorf("failed dropping table '%s': %w", t, err)
		}
		m.logger.Debug("dropped table", "table", t)
		dropped = append(dropped, t)
	}

	return dropped, nil
}

func (m *Migrator) notify(ev Event) {
	if m.observer != nil {
		m.observer.Observe(ev)
	}
}

func unwrapBatch(err error) error {
	var berr *BatchError
	if errors.As(err, &berr) {
		return berr.Err
	}
	return err
}
