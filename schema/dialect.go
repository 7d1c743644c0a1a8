package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Executor runs SQL statements. It is satisfied by *sql.DB, *sql.Tx and
// *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnInfo is the introspected description of a table column.
type ColumnInfo struct {
	Name       string
	Type       string
	Size       int
	PrimaryKey bool
}

// ForeignKeyAction is the referential action of a foreign key constraint.
type ForeignKeyAction string

// Referential actions accepted by AddForeignKey.
const (
	Cascade    ForeignKeyAction = "CASCADE"
	Restrict   ForeignKeyAction = "RESTRICT"
	SetNull    ForeignKeyAction = "SET NULL"
	SetDefault ForeignKeyAction = "SET DEFAULT"
	NoAction   ForeignKeyAction = "NO ACTION"
)

// Dialect renders engine-specific SQL. Methods return a NotSupportedError
// for operations the engine can't perform.
type Dialect interface {
	Name() string
	// Quote quotes a table or column name. Dotted names are quoted per part.
	Quote(name string) string
	// QuoteValue returns a string literal.
	QuoteValue(s string) string
	// Rebind converts '?' placeholders to the engine's placeholder syntax.
	Rebind(query string) string
	// ColumnType maps an abstract column type to the engine's type.
	ColumnType(t ColumnType, size []int, unsigned bool) string
	BoolLiteral(v bool) string
	InlineColumnComments() bool
	SupportsPlacement() bool

	RenameTable(from, to string) string
	DropTable(table string, cascade bool) string
	TruncateTable(table string) string
	AlterColumn(table, column string, col *Column) ([]string, error)
	AddPrimaryKey(name, table string, columns []string) (string, error)
	DropPrimaryKey(name, table string) (string, error)
	AddForeignKey(name, table string, columns []string, refTable string,
		refColumns []string, onDelete, onUpdate ForeignKeyAction) (string, error)
	DropForeignKey(name, table string) (string, error)
	DropIndex(name, table string) string
	CommentOnColumn(table, column string, comment sql.Null[string]) (string, error)
	CommentOnTable(table string, comment sql.Null[string]) (string, error)
	// ForeignKeyChecks returns the statement toggling foreign key enforcement
	// for the current session, or an empty string if there is none.
	ForeignKeyChecks(enabled bool) string

	TableNames(ctx context.Context, q Executor) ([]string, error)
	Columns(ctx context.Context, q Executor, table string) ([]ColumnInfo, error)
}

// DialectFor returns the dialect for the given engine name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return NewSQLite(), nil
	case "postgres", "postgresql", "pgx", "pgsql":
		return NewPostgres(), nil
	case "mysql", "mariadb":
		return NewMySQL(), nil
	}
	return nil, fmt.Errorf("unsupported database dialect '%s'", name)
}

// base holds behavior shared by all dialects. Methods on base must only use
// its own fields, since they're promoted to the embedding dialect types.
type base struct {
	name       string
	quoteOpen  string
	quoteClose string
	typeMap    map[ColumnType]string
	numbered   bool
}

func (d base) Name() string {
	return d.name
}

func (d base) Quote(name string) string {
	// Expressions are written as is.
	if name == "*" || strings.Contains(name, "(") {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" || d.isQuoted(p) {
			continue
		}
		esc := strings.ReplaceAll(p, d.quoteClose, d.quoteClose+d.quoteClose)
		parts[i] = d.quoteOpen + esc + d.quoteClose
	}
	return strings.Join(parts, ".")
}

func (d base) isQuoted(name string) bool {
	return len(name) >= len(d.quoteOpen)+len(d.quoteClose) &&
		strings.HasPrefix(name, d.quoteOpen) && strings.HasSuffix(name, d.quoteClose)
}

func (d base) QuoteValue(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d base) quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = d.Quote(n)
	}
	return strings.Join(q, ", ")
}

func (d base) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var (
		sb      strings.Builder
		n       int
		inQuote rune
	)
	sb.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == '?':
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

var sizeRx = regexp.MustCompile(`\(.+?\)`)

func (d base) ColumnType(t ColumnType, size []int, _ bool) string {
	typ, ok := d.typeMap[t]
	if !ok {
		return string(t)
	}
	if len(size) > 0 && strings.Contains(typ, "(") {
		parts := make([]string, len(size))
		for i, s := range size {
			parts[i] = fmt.Sprint(s)
		}
		typ = sizeRx.ReplaceAllLiteralString(typ, "("+strings.Join(parts, ",")+")")
	}
	return typ
}

func (d base) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (d base) InlineColumnComments() bool {
	return false
}

func (d base) SupportsPlacement() bool {
	return false
}

func (d base) RenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.Quote(from), d.Quote(to))
}

func (d base) DropTable(table string, _ bool) string {
	return fmt.Sprintf("DROP TABLE %s", d.Quote(table))
}

func (d base) TruncateTable(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.Quote(table))
}

func (d base) AddPrimaryKey(name, table string, columns []string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.Quote(table), d.Quote(name), d.quoteAll(columns)), nil
}

func (d base) DropPrimaryKey(name, table string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Quote(table), d.Quote(name)), nil
}

func (d base) AddForeignKey(
	name, table string, columns []string, refTable string, refColumns []string,
	onDelete, onUpdate ForeignKeyAction,
) (string, error) {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.Quote(table), d.Quote(name), d.quoteAll(columns), d.Quote(refTable), d.quoteAll(refColumns))
	if onDelete != "" {
		stmt += " ON DELETE " + string(onDelete)
	}
	if onUpdate != "" {
		stmt += " ON UPDATE " + string(onUpdate)
	}
	return stmt, nil
}

func (d base) DropForeignKey(name, table string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Quote(table), d.Quote(name)), nil
}

func (d base) DropIndex(name, _ string) string {
	return fmt.Sprintf("DROP INDEX %s", d.Quote(name))
}

func (d base) ForeignKeyChecks(bool) string {
	return ""
}

func (d base) notSupported(op string) error {
	return &NotSupportedError{Dialect: d.name, Operation: op}
}

func scanColumns(rows *sql.Rows, scan func(*sql.Rows) (ColumnInfo, error)) (cols []ColumnInfo, rerr error) {
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed closing column rows: %w", err)
		}
	}()

	for rows.Next() {
		col, err := scan(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating over column rows: %w", err)
	}

	return cols, nil
}

func queryStrings(ctx context.Context, q Executor, query string, args ...any) (vals []string, rerr error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed closing rows: %w", err)
		}
	}()

	vals = []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return vals, nil
}
