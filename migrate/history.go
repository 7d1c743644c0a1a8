package migrate

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/models"
	"go.hackfix.me/dbmigrate/schema"
)

// DefaultNameLength is the size of the name column of a new history table
// when no maximum name length is configured.
const DefaultNameLength = 180

// Record is a row of the history table.
type Record struct {
	Name      string
	ApplyTime time.Time
}

// History tracks applied migrations in a database table.
type History struct {
	builder    *schema.Builder
	table      string
	nameLength int
	timeSource models.TimeSource
	ensured    bool
}

// NewHistory returns a new History stored in table. A nameLength of 0 means
// the limit is unknown until the table exists.
func NewHistory(b *schema.Builder, table string, nameLength int, ts models.TimeSource) *History {
	return &History{builder: b, table: table, nameLength: nameLength, timeSource: ts}
}

// Table returns the resolved name of the history table.
func (h *History) Table() string {
	return h.builder.RawTableName(h.table)
}

// Ensure creates the history table if it doesn't exist.
func (h *History) Ensure(ctx context.Context) error {
	if h.ensured {
		return nil
	}

	ok, err := h.builder.HasTable(ctx, h.table)
	if err != nil {
		return fmt.Errorf("failed checking for the history table: %w", err)
	}
	if !ok {
		size := h.nameLength
		if size <= 0 {
			size = DefaultNameLength
		}
		d := h.builder.Dialect()
		err = h.builder.CreateTable(ctx, h.table, []schema.ColumnDef{
			schema.Col("name", h.builder.String(size).NotNull()),
			schema.Col("apply_time", h.builder.Integer()),
			schema.Raw(fmt.Sprintf("PRIMARY KEY (%s)", d.Quote("name"))),
		})
		if err != nil {
			return fmt.Errorf("failed creating the history table: %w", err)
		}
	}
	h.ensured = true

	return nil
}

// reset forgets that the table exists, e.g. after all tables were dropped.
func (h *History) reset() {
	h.ensured = false
}

// RecordApplied adds a history record with the current time.
func (h *History) RecordApplied(ctx context.Context, name string) error {
	if err := h.Ensure(ctx); err != nil {
		return err
	}
	return h.recordApplied(ctx, h.builder.Executor(), name)
}

func (h *History) recordApplied(ctx context.Context, exec schema.Executor, name string) error {
	d := h.builder.Dialect()
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		d.Quote(h.Table()), d.Quote("name"), d.Quote("apply_time"))
	_, err := exec.ExecContext(ctx, d.Rebind(query), name, h.timeSource.Now().Unix())
	if err != nil {
		return types.Err("migration", fmt.Sprintf("name '%s'", name), err)
	}

	return nil
}

// RecordReverted deletes the history record of the migration.
func (h *History) RecordReverted(ctx context.Context, name string) error {
	if err := h.Ensure(ctx); err != nil {
		return err
	}
	return h.recordReverted(ctx, h.builder.Executor(), name)
}

func (h *History) recordReverted(ctx context.Context, exec schema.Executor, name string) error {
	d := h.builder.Dialect()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", d.Quote(h.Table()), d.Quote("name"))
	if _, err := exec.ExecContext(ctx, d.Rebind(query), name); err != nil {
		return fmt.Errorf("failed deleting history record of '%s': %w", name, err)
	}

	return nil
}

// Applied returns up to limit history records, most recently applied first.
// Records applied at the same second are ordered by their embedded timestamp,
// then by name, both descending. A limit <= 0 returns all records.
func (h *History) Applied(ctx context.Context, limit int) (recs []Record, rerr error) {
	if err := h.Ensure(ctx); err != nil {
		return nil, err
	}

	d := h.builder.Dialect()
	rows, err := h.builder.Executor().QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s",
		d.Quote("name"), d.Quote("apply_time"), d.Quote(h.Table())))
	if err != nil {
		return nil, types.LoadError{ModelName: "migration history", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed closing history rows: %w", err)
		}
	}()

	recs = []Record{}
	for rows.Next() {
		var (
			name      string
			applyTime sql.Null[int64]
		)
		if err := rows.Scan(&name, &applyTime); err != nil {
			return nil, types.ScanError{ModelName: "migration history", Err: err}
		}
		recs = append(recs, Record{Name: name, ApplyTime: time.Unix(applyTime.V, 0).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, types.LoadError{ModelName: "migration history", Err: err}
	}

	slices.SortFunc(recs, func(a, b Record) int {
		return cmp.Or(
			b.ApplyTime.Compare(a.ApplyTime),
			cmp.Compare(Canonical(b.Name), Canonical(a.Name)),
			cmp.Compare(b.Name, a.Name),
		)
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return recs, nil
}

// NameLimit returns the maximum length of a migration name: the configured
// value, or the size of the name column of the history table. It returns
// false if neither is known.
func (h *History) NameLimit(ctx context.Context) (int, bool, error) {
	if h.nameLength > 0 {
		return h.nameLength, true, nil
	}
	size, ok, err := h.builder.ColumnSize(ctx, h.table, "name")
	if err != nil {
		return 0, false, fmt.Errorf("failed reading the size of the history name column: %w", err)
	}
	return size, ok, nil
}
