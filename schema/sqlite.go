package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
)

// SQLite is the SQLite dialect.
type SQLite struct {
	base
}

var _ Dialect = (*SQLite)(nil)

// NewSQLite returns the SQLite dialect.
func NewSQLite() *SQLite {
	return &SQLite{base{
		name:       "sqlite",
		quoteOpen:  `"`,
		quoteClose: `"`,
		typeMap: map[ColumnType]string{
			TypePK:        "integer PRIMARY KEY AUTOINCREMENT NOT NULL",
			TypeBigPK:     "integer PRIMARY KEY AUTOINCREMENT NOT NULL",
			TypeChar:      "char(1)",
			TypeString:    "varchar(255)",
			TypeText:      "text",
			TypeTinyInt:   "tinyint",
			TypeSmallInt:  "smallint",
			TypeInteger:   "integer",
			TypeBigInt:    "bigint",
			TypeFloat:     "float",
			TypeDouble:    "double",
			TypeDecimal:   "decimal(10,0)",
			TypeDateTime:  "datetime",
			TypeTimestamp: "timestamp",
			TypeTime:      "time",
			TypeDate:      "date",
			TypeBinary:    "blob",
			TypeBoolean:   "boolean",
			TypeMoney:     "decimal(19,4)",
			TypeJSON:      "json",
		},
	}}
}

// TruncateTable implements the Dialect interface. SQLite has no TRUNCATE.
func (d *SQLite) TruncateTable(table string) string {
	return fmt.Sprintf("DELETE FROM %s", d.Quote(table))
}

// AlterColumn implements the Dialect interface.
func (d *SQLite) AlterColumn(string, string, *Column) ([]string, error) {
	return nil, d.notSupported("alter column")
}

// AddPrimaryKey implements the Dialect interface.
func (d *SQLite) AddPrimaryKey(string, string, []string) (string, error) {
	return "", d.notSupported("add primary key")
}

// DropPrimaryKey implements the Dialect interface.
func (d *SQLite) DropPrimaryKey(string, string) (string, error) {
	return "", d.notSupported("drop primary key")
}

// AddForeignKey implements the Dialect interface.
func (d *SQLite) AddForeignKey(
	string, string, []string, string, []string, ForeignKeyAction, ForeignKeyAction,
) (string, error) {
	return "", d.notSupported("add foreign key")
}

// DropForeignKey implements the Dialect interface.
func (d *SQLite) DropForeignKey(string, string) (string, error) {
	return "", d.notSupported("drop foreign key")
}

// CommentOnColumn implements the Dialect interface.
func (d *SQLite) CommentOnColumn(string, string, sql.Null[string]) (string, error) {
	return "", d.notSupported("comment on column")
}

// CommentOnTable implements the Dialect interface.
func (d *SQLite) CommentOnTable(string, sql.Null[string]) (string, error) {
	return "", d.notSupported("comment on table")
}

// ForeignKeyChecks implements the Dialect interface.
func (d *SQLite) ForeignKeyChecks(enabled bool) string {
	if enabled {
		return "PRAGMA foreign_keys = ON"
	}
	return "PRAGMA foreign_keys = OFF"
}

// TableNames implements the Dialect interface.
func (d *SQLite) TableNames(ctx context.Context, q Executor) ([]string, error) {
	return queryStrings(ctx, q,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
}

var sqliteSizeRx = regexp.MustCompile(`\((\d+)`)

// Columns implements the Dialect interface.
func (d *SQLite) Columns(ctx context.Context, q Executor, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.Quote(table)))
	if err != nil {
		return nil, err
	}

	return scanColumns(rows, func(rows *sql.Rows) (ColumnInfo, error) {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return ColumnInfo{}, err
		}
		col := ColumnInfo{Name: name, Type: typ, PrimaryKey: pk > 0}
		if m := sqliteSizeRx.FindStringSubmatch(typ); m != nil {
			col.Size, _ = strconv.Atoi(m[1])
		}
		return col, nil
	})
}
