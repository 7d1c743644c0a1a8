package schema

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ColumnDef is an entry of a CREATE TABLE column list: either a named column
// or a raw table constraint.
type ColumnDef struct {
	Name   string
	Column *Column
	Raw    string
}

// Col returns a named column definition.
func Col(name string, col *Column) ColumnDef {
	return ColumnDef{Name: name, Column: col}
}

// Raw returns a raw table-level definition, e.g. "PRIMARY KEY(a, b)".
func Raw(sql string) ColumnDef {
	return ColumnDef{Raw: sql}
}

// Builder issues schema changes and data manipulation statements on behalf of
// migrations. It's bound to an Executor, which is either the database
// connection or a transaction.
type Builder struct {
	exec      Executor
	dialect   Dialect
	informer  Informer
	inspector *Inspector
	prefix    string
}

// Option configures a Builder.
type Option func(*Builder)

// WithInformer sets the Informer notified of each command.
func WithInformer(inf Informer) Option {
	return func(b *Builder) {
		b.informer = inf
	}
}

// WithTablePrefix sets the prefix that replaces '%' in table names of the
// form {{%name}}.
func WithTablePrefix(prefix string) Option {
	return func(b *Builder) {
		b.prefix = prefix
	}
}

// WithInspector sets a shared Inspector.
func WithInspector(insp *Inspector) Option {
	return func(b *Builder) {
		b.inspector = insp
	}
}

// NewBuilder returns a new Builder.
func NewBuilder(exec Executor, d Dialect, opts ...Option) *Builder {
	b := &Builder{exec: exec, dialect: d, informer: NopInformer{}}
	for _, opt := range opts {
		opt(b)
	}
	if b.inspector == nil {
		b.inspector = NewInspector(d)
	}
	return b
}

// WithExecutor returns a copy of the Builder bound to another Executor. The
// copy shares the Inspector.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	nb := *b
	nb.exec = exec
	return &nb
}

// WithInformer returns a copy of the Builder using another Informer.
func (b *Builder) WithInformer(inf Informer) *Builder {
	nb := *b
	nb.informer = inf
	return &nb
}

// Dialect returns the dialect of the Builder.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Executor returns the Executor the Builder is bound to.
func (b *Builder) Executor() Executor {
	return b.exec
}

// Inspector returns the schema Inspector of the Builder.
func (b *Builder) Inspector() *Inspector {
	return b.inspector
}

var tableNameRx = regexp.MustCompile(`\{\{(%?)([^}]+)\}\}`)

// RawTableName resolves the {{name}} and {{%name}} forms of a table name.
func (b *Builder) RawTableName(name string) string {
	return tableNameRx.ReplaceAllStringFunc(name, func(m string) string {
		sub := tableNameRx.FindStringSubmatch(m)
		if sub[1] == "%" {
			return b.prefix + sub[2]
		}
		return sub[2]
	})
}

func (b *Builder) quoteTable(name string) string {
	return b.dialect.Quote(b.RawTableName(name))
}

func (b *Builder) quoteColumns(columns []string) string {
	q := make([]string, len(columns))
	for i, c := range columns {
		q[i] = b.dialect.Quote(c)
	}
	return strings.Join(q, ", ")
}

// run executes the statements as a single command announced to the
// informer. Cached metadata of the affected tables is dropped afterwards.
func (b *Builder) run(ctx context.Context, desc string, tables []string, stmts ...string) error {
	b.informer.BeginCommand(desc)
	start := time.Now()

	var err error
	for _, stmt := range stmts {
		if _, err = b.exec.ExecContext(ctx, stmt); err != nil {
			break
		}
	}
	if len(tables) > 0 {
		resolved := make([]string, len(tables))
		for i, t := range tables {
			resolved[i] = b.RawTableName(t)
		}
		b.inspector.Refresh(resolved...)
	}

	b.informer.EndCommand(time.Since(start), err)

	return err
}

// Execute runs a raw SQL statement. Placeholders use the '?' syntax, and are
// only converted if args are given.
func (b *Builder) Execute(ctx context.Context, query string, args ...any) error {
	b.informer.BeginCommand("execute SQL: " + query)
	start := time.Now()
	if len(args) > 0 {
		query = b.dialect.Rebind(query)
	}
	_, err := b.exec.ExecContext(ctx, query, args...)
	b.inspector.Refresh()
	b.informer.EndCommand(time.Since(start), err)
	return err
}

// Insert inserts a row. Columns are written in sorted order.
func (b *Builder) Insert(ctx context.Context, table string, row map[string]any) error {
	cols := slices.Sorted(maps.Keys(row))
	args := make([]any, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		args[i] = row[c]
		ph[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.quoteTable(table), b.quoteColumns(cols), strings.Join(ph, ", "))

	b.informer.BeginCommand("insert into " + b.quoteTable(table))
	start := time.Now()
	_, err := b.exec.ExecContext(ctx, b.dialect.Rebind(stmt), args...)
	b.informer.EndCommand(time.Since(start), err)

	return err
}

// Update updates rows matching the condition. The condition uses '?'
// placeholders for args.
func (b *Builder) Update(ctx context.Context, table string, set map[string]any, where string, args ...any) error {
	cols := slices.Sorted(maps.Keys(set))
	assign := make([]string, len(cols))
	vals := make([]any, 0, len(cols)+len(args))
	for i, c := range cols {
		assign[i] = b.dialect.Quote(c) + " = ?"
		vals = append(vals, set[c])
	}
	vals = append(vals, args...)

	stmt := fmt.Sprintf("UPDATE %s SET %s", b.quoteTable(table), strings.Join(assign, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}

	b.informer.BeginCommand("update " + b.quoteTable(table))
	start := time.Now()
	_, err := b.exec.ExecContext(ctx, b.dialect.Rebind(stmt), vals...)
	b.informer.EndCommand(time.Since(start), err)

	return err
}

// Delete deletes rows matching the condition. An empty condition deletes all
// rows.
func (b *Builder) Delete(ctx context.Context, table, where string, args ...any) error {
	stmt := "DELETE FROM " + b.quoteTable(table)
	if where != "" {
		stmt += " WHERE " + where
	}

	b.informer.BeginCommand("delete from " + b.quoteTable(table))
	start := time.Now()
	_, err := b.exec.ExecContext(ctx, b.dialect.Rebind(stmt), args...)
	b.informer.EndCommand(time.Since(start), err)

	return err
}

// CreateTable creates a table. The options are appended verbatim after the
// column list.
func (b *Builder) CreateTable(ctx context.Context, table string, columns []ColumnDef, options ...string) error {
	defs := make([]string, 0, len(columns))
	var comments []string
	for _, c := range columns {
		if c.Column == nil {
			defs = append(defs, c.Raw)
			continue
		}
		defs = append(defs, fmt.Sprintf("%s %s", b.dialect.Quote(c.Name), c.Column.SQL(b.dialect)))
		if c.Column.comment.Valid && !b.dialect.InlineColumnComments() {
			if stmt, err := b.dialect.CommentOnColumn(b.RawTableName(table), c.Name, c.Column.comment); err == nil {
				comments = append(comments, stmt)
			}
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", b.quoteTable(table), strings.Join(defs, ",\n\t"))
	if len(options) > 0 {
		stmt += " " + strings.Join(options, " ")
	}

	return b.run(ctx, "create table "+b.quoteTable(table), []string{table},
		append([]string{stmt}, comments...)...)
}

// DropTable drops a table.
func (b *Builder) DropTable(ctx context.Context, table string) error {
	return b.run(ctx, "drop table "+b.quoteTable(table), []string{table},
		b.dialect.DropTable(b.RawTableName(table), false))
}

// DropTableCascade drops a table and, where the engine supports it, the
// objects that depend on it.
func (b *Builder) DropTableCascade(ctx context.Context, table string) error {
	return b.run(ctx, "drop table "+b.quoteTable(table), []string{table},
		b.dialect.DropTable(b.RawTableName(table), true))
}

// RenameTable renames a table.
func (b *Builder) RenameTable(ctx context.Context, from, to string) error {
	return b.run(ctx, fmt.Sprintf("rename table %s to %s", b.quoteTable(from), b.quoteTable(to)),
		[]string{from, to}, b.dialect.RenameTable(b.RawTableName(from), b.RawTableName(to)))
}

// TruncateTable deletes all rows of a table.
func (b *Builder) TruncateTable(ctx context.Context, table string) error {
	return b.run(ctx, "truncate table "+b.quoteTable(table), nil,
		b.dialect.TruncateTable(b.RawTableName(table)))
}

// AddColumn adds a column to a table.
func (b *Builder) AddColumn(ctx context.Context, table, column string, col *Column) error {
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		b.quoteTable(table), b.dialect.Quote(column), col.SQL(b.dialect))}
	if col.comment.Valid && !b.dialect.InlineColumnComments() {
		if stmt, err := b.dialect.CommentOnColumn(b.RawTableName(table), column, col.comment); err == nil {
			stmts = append(stmts, stmt)
		}
	}

	return b.run(ctx, fmt.Sprintf("add column %s %s to table %s",
		column, col.SQL(b.dialect), b.quoteTable(table)), []string{table}, stmts...)
}

// DropColumn drops a column from a table.
func (b *Builder) DropColumn(ctx context.Context, table, column string) error {
	return b.run(ctx, fmt.Sprintf("drop column %s from table %s", column, b.quoteTable(table)),
		[]string{table}, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			b.quoteTable(table), b.dialect.Quote(column)))
}

// RenameColumn renames a column.
func (b *Builder) RenameColumn(ctx context.Context, table, from, to string) error {
	return b.run(ctx, fmt.Sprintf("rename column %s in table %s to %s", from, b.quoteTable(table), to),
		[]string{table}, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			b.quoteTable(table), b.dialect.Quote(from), b.dialect.Quote(to)))
}

// AlterColumn changes the definition of a column.
func (b *Builder) AlterColumn(ctx context.Context, table, column string, col *Column) error {
	stmts, err := b.dialect.AlterColumn(b.RawTableName(table), column, col)
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("alter column %s in table %s to %s",
		column, b.quoteTable(table), col.SQL(b.dialect)), []string{table}, stmts...)
}

// AddPrimaryKey adds a named primary key constraint.
func (b *Builder) AddPrimaryKey(ctx context.Context, name, table string, columns ...string) error {
	stmt, err := b.dialect.AddPrimaryKey(name, b.RawTableName(table), columns)
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("add primary key %s on %s (%s)",
		name, b.quoteTable(table), strings.Join(columns, ",")), []string{table}, stmt)
}

// DropPrimaryKey drops a named primary key constraint.
func (b *Builder) DropPrimaryKey(ctx context.Context, name, table string) error {
	stmt, err := b.dialect.DropPrimaryKey(name, b.RawTableName(table))
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("drop primary key %s", name), []string{table}, stmt)
}

// AddForeignKey adds a foreign key constraint. Empty actions are omitted.
func (b *Builder) AddForeignKey(
	ctx context.Context, name, table string, columns []string,
	refTable string, refColumns []string, onDelete, onUpdate ForeignKeyAction,
) error {
	stmt, err := b.dialect.AddForeignKey(name, b.RawTableName(table), columns,
		b.RawTableName(refTable), refColumns, onDelete, onUpdate)
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("add foreign key %s: %s (%s) references %s (%s)",
		name, b.quoteTable(table), strings.Join(columns, ","),
		b.quoteTable(refTable), strings.Join(refColumns, ",")), []string{table}, stmt)
}

// DropForeignKey drops a foreign key constraint.
func (b *Builder) DropForeignKey(ctx context.Context, name, table string) error {
	stmt, err := b.dialect.DropForeignKey(name, b.RawTableName(table))
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("drop foreign key %s from table %s", name, b.quoteTable(table)),
		[]string{table}, stmt)
}

// CreateIndex creates an index.
func (b *Builder) CreateIndex(ctx context.Context, name, table string, columns []string, unique bool) error {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf("CREATE %s %s ON %s (%s)",
		kind, b.dialect.Quote(name), b.quoteTable(table), b.quoteColumns(columns))
	return b.run(ctx, fmt.Sprintf("create %s %s on %s (%s)",
		strings.ToLower(kind), name, b.quoteTable(table), strings.Join(columns, ",")), []string{table}, stmt)
}

// DropIndex drops an index.
func (b *Builder) DropIndex(ctx context.Context, name, table string) error {
	return b.run(ctx, fmt.Sprintf("drop index %s on %s", name, b.quoteTable(table)), []string{table},
		b.dialect.DropIndex(name, b.RawTableName(table)))
}

// AddCommentOnColumn sets the comment of a column.
func (b *Builder) AddCommentOnColumn(ctx context.Context, table, column, comment string) error {
	stmt, err := b.dialect.CommentOnColumn(b.RawTableName(table), column,
		sql.Null[string]{V: comment, Valid: true})
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("add comment on column %s", column), nil, stmt)
}

// AddCommentOnTable sets the comment of a table.
func (b *Builder) AddCommentOnTable(ctx context.Context, table, comment string) error {
	stmt, err := b.dialect.CommentOnTable(b.RawTableName(table), sql.Null[string]{V: comment, Valid: true})
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("add comment on table %s", b.quoteTable(table)), nil, stmt)
}

// DropCommentFromColumn removes the comment of a column.
func (b *Builder) DropCommentFromColumn(ctx context.Context, table, column string) error {
	stmt, err := b.dialect.CommentOnColumn(b.RawTableName(table), column, sql.Null[string]{})
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("drop comment from column %s", column), nil, stmt)
}

// DropCommentFromTable removes the comment of a table.
func (b *Builder) DropCommentFromTable(ctx context.Context, table string) error {
	stmt, err := b.dialect.CommentOnTable(b.RawTableName(table), sql.Null[string]{})
	if err != nil {
		return err
	}
	return b.run(ctx, fmt.Sprintf("drop comment from table %s", b.quoteTable(table)), nil, stmt)
}

// TableNames returns the names of all tables.
func (b *Builder) TableNames(ctx context.Context) ([]string, error) {
	return b.inspector.TableNames(ctx, b.exec)
}

// HasTable returns true if the table exists.
func (b *Builder) HasTable(ctx context.Context, table string) (bool, error) {
	return b.inspector.HasTable(ctx, b.exec, b.RawTableName(table))
}

// TablePrimaryKey returns the primary key columns of a table.
func (b *Builder) TablePrimaryKey(ctx context.Context, table string) ([]string, error) {
	return b.inspector.PrimaryKey(ctx, b.exec, b.RawTableName(table))
}

// ColumnSize returns the declared size of a column, and false if it's unknown.
func (b *Builder) ColumnSize(ctx context.Context, table, column string) (int, bool, error) {
	return b.inspector.ColumnSize(ctx, b.exec, b.RawTableName(table), column)
}

// Column type shortcuts.

// PrimaryKey returns an auto-incrementing primary key column.
func (b *Builder) PrimaryKey(size ...int) *Column {
	return NewColumn(TypePK, size...)
}

// BigPrimaryKey returns a big auto-incrementing primary key column.
func (b *Builder) BigPrimaryKey(size ...int) *Column {
	return NewColumn(TypeBigPK, size...)
}

// Char returns a fixed-length string column.
func (b *Builder) Char(size ...int) *Column {
	return NewColumn(TypeChar, size...)
}

// String returns a variable-length string column.
func (b *Builder) String(size ...int) *Column {
	return NewColumn(TypeString, size...)
}

// Text returns a text column.
func (b *Builder) Text() *Column {
	return NewColumn(TypeText)
}

// TinyInteger returns a tiny integer column.
func (b *Builder) TinyInteger(size ...int) *Column {
	return NewColumn(TypeTinyInt, size...)
}

// SmallInteger returns a small integer column.
func (b *Builder) SmallInteger(size ...int) *Column {
	return NewColumn(TypeSmallInt, size...)
}

// Integer returns an integer column.
func (b *Builder) Integer(size ...int) *Column {
	return NewColumn(TypeInteger, size...)
}

// BigInteger returns a big integer column.
func (b *Builder) BigInteger(size ...int) *Column {
	return NewColumn(TypeBigInt, size...)
}

// Float returns a float column.
func (b *Builder) Float(precision ...int) *Column {
	return NewColumn(TypeFloat, precision...)
}

// Double returns a double precision column.
func (b *Builder) Double(precision ...int) *Column {
	return NewColumn(TypeDouble, precision...)
}

// Decimal returns a decimal column with an optional precision and scale.
func (b *Builder) Decimal(precisionScale ...int) *Column {
	return NewColumn(TypeDecimal, precisionScale...)
}

// Money returns a monetary column.
func (b *Builder) Money(precisionScale ...int) *Column {
	return NewColumn(TypeMoney, precisionScale...)
}

// DateTime returns a datetime column.
func (b *Builder) DateTime(precision ...int) *Column {
	return NewColumn(TypeDateTime, precision...)
}

// Timestamp returns a timestamp column.
func (b *Builder) Timestamp(precision ...int) *Column {
	return NewColumn(TypeTimestamp, precision...)
}

// Time returns a time column.
func (b *Builder) Time(precision ...int) *Column {
	return NewColumn(TypeTime, precision...)
}

// Date returns a date column.
func (b *Builder) Date() *Column {
	return NewColumn(TypeDate)
}

// Binary returns a binary column.
func (b *Builder) Binary(size ...int) *Column {
	return NewColumn(TypeBinary, size...)
}

// Boolean returns a boolean column.
func (b *Builder) Boolean() *Column {
	return NewColumn(TypeBoolean)
}

// JSON returns a JSON column.
func (b *Builder) JSON() *Column {
	return NewColumn(TypeJSON)
}
