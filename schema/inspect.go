package schema

import (
	"context"
	"slices"
	"sync"
)

// Inspector reads table metadata from the database and caches it. The cache
// must be suspended while the schema is being changed, see Suspend.
type Inspector struct {
	dialect Dialect

	mx        sync.Mutex
	disabled  int
	tables    []string
	hasTables bool
	columns   map[string][]ColumnInfo
}

// NewInspector returns a new Inspector for the dialect.
func NewInspector(d Dialect) *Inspector {
	return &Inspector{dialect: d, columns: map[string][]ColumnInfo{}}
}

// TableNames returns the names of all tables in the current schema.
func (i *Inspector) TableNames(ctx context.Context, q Executor) ([]string, error) {
	i.mx.Lock()
	if i.disabled == 0 && i.hasTables {
		tables := slices.Clone(i.tables)
		i.mx.Unlock()
		return tables, nil
	}
	i.mx.Unlock()

	tables, err := i.dialect.TableNames(ctx, q)
	if err != nil {
		return nil, err
	}

	i.mx.Lock()
	if i.disabled == 0 {
		i.tables, i.hasTables = slices.Clone(tables), true
	}
	i.mx.Unlock()

	return tables, nil
}

// HasTable returns true if the table exists.
func (i *Inspector) HasTable(ctx context.Context, q Executor, table string) (bool, error) {
	tables, err := i.TableNames(ctx, q)
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, table), nil
}

// Columns returns the columns of the table. A table that doesn't exist has no
// columns.
func (i *Inspector) Columns(ctx context.Context, q Executor, table string) ([]ColumnInfo, error) {
	i.mx.Lock()
	if cols, ok := i.columns[table]; ok && i.disabled == 0 {
		i.mx.Unlock()
		return slices.Clone(cols), nil
	}
	i.mx.Unlock()

	cols, err := i.dialect.Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	i.mx.Lock()
	if i.disabled == 0 {
		i.columns[table] = slices.Clone(cols)
	}
	i.mx.Unlock()

	return cols, nil
}

// PrimaryKey returns the primary key columns of the table.
func (i *Inspector) PrimaryKey(ctx context.Context, q Executor, table string) ([]string, error) {
	cols, err := i.Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	var pk []string
	for _, c := range cols {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}

	return pk, nil
}

// ColumnSize returns the declared size of a column, and false if the column
// doesn't exist or has no size.
func (i *Inspector) ColumnSize(ctx context.Context, q Executor, table, column string) (int, bool, error) {
	cols, err := i.Columns(ctx, q, table)
	if err != nil {
		return 0, false, err
	}
	for _, c := range cols {
		if c.Name == column {
			return c.Size, c.Size > 0, nil
		}
	}
	return 0, false, nil
}

// Refresh drops cached metadata of the given tables, or of all tables if none
// are given.
func (i *Inspector) Refresh(tables ...string) {
	i.mx.Lock()
	defer i.mx.Unlock()

	i.tables, i.hasTables = nil, false
	if len(tables) == 0 {
		clear(i.columns)
		return
	}
	for _, t := range tables {
		delete(i.columns, t)
	}
}

// Suspend disables caching until the returned function is called, which
// re-enables it with an empty cache. Calls may be nested.
func (i *Inspector) Suspend() (restore func()) {
	i.mx.Lock()
	i.disabled++
	i.mx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mx.Lock()
			i.disabled--
			i.mx.Unlock()
			i.Refresh()
		})
	}
}
