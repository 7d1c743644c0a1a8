package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct {
	base
}

var _ Dialect = (*Postgres)(nil)

// NewPostgres returns the PostgreSQL dialect.
func NewPostgres() *Postgres {
	return &Postgres{base{
		name:       "postgres",
		quoteOpen:  `"`,
		quoteClose: `"`,
		numbered:   true,
		typeMap: map[ColumnType]string{
			TypePK:        "serial NOT NULL PRIMARY KEY",
			TypeBigPK:     "bigserial NOT NULL PRIMARY KEY",
			TypeChar:      "char(1)",
			TypeString:    "varchar(255)",
			TypeText:      "text",
			TypeTinyInt:   "smallint",
			TypeSmallInt:  "smallint",
			TypeInteger:   "integer",
			TypeBigInt:    "bigint",
			TypeFloat:     "double precision",
			TypeDouble:    "double precision",
			TypeDecimal:   "numeric(10,0)",
			TypeDateTime:  "timestamp(0)",
			TypeTimestamp: "timestamp(0)",
			TypeTime:      "time(0)",
			TypeDate:      "date",
			TypeBinary:    "bytea",
			TypeBoolean:   "boolean",
			TypeMoney:     "numeric(19,4)",
			TypeJSON:      "jsonb",
		},
	}}
}

// BoolLiteral implements the Dialect interface.
func (d *Postgres) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// DropTable implements the Dialect interface.
func (d *Postgres) DropTable(table string, cascade bool) string {
	stmt := d.base.DropTable(table, cascade)
	if cascade {
		stmt += " CASCADE"
	}
	return stmt
}

// AlterColumn implements the Dialect interface. PostgreSQL changes the type,
// nullability and default of a column with separate clauses.
func (d *Postgres) AlterColumn(table, column string, col *Column) ([]string, error) {
	tbl, c := d.Quote(table), d.Quote(column)
	clauses := []string{
		fmt.Sprintf("ALTER COLUMN %s TYPE %s", c, d.ColumnType(col.typ, col.size, col.unsigned)),
	}
	if col.notNull.Valid {
		if col.notNull.V {
			clauses = append(clauses, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", c))
		} else {
			clauses = append(clauses, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", c))
		}
	}
	if def, ok := col.defaultSQL(d); ok {
		clauses = append(clauses, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", c, def))
	}

	stmts := []string{fmt.Sprintf("ALTER TABLE %s %s", tbl, strings.Join(clauses, ", "))}
	if col.unique {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD UNIQUE (%s)", tbl, c))
	}
	if col.check != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CHECK (%s)", tbl, col.check))
	}

	return stmts, nil
}

// CommentOnColumn implements the Dialect interface.
func (d *Postgres) CommentOnColumn(table, column string, comment sql.Null[string]) (string, error) {
	val := "NULL"
	if comment.Valid {
		val = d.QuoteValue(comment.V)
	}
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", d.Quote(table), d.Quote(column), val), nil
}

// CommentOnTable implements the Dialect interface.
func (d *Postgres) CommentOnTable(table string, comment sql.Null[string]) (string, error) {
	val := "NULL"
	if comment.Valid {
		val = d.QuoteValue(comment.V)
	}
	return fmt.Sprintf("COMMENT ON TABLE %s IS %s", d.Quote(table), val), nil
}

// TableNames implements the Dialect interface.
func (d *Postgres) TableNames(ctx context.Context, q Executor) ([]string, error) {
	return queryStrings(ctx, q, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

// Columns implements the Dialect interface.
func (d *Postgres) Columns(ctx context.Context, q Executor, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT
			c.column_name, c.data_type, COALESCE(c.character_maximum_length, 0),
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
				  ON tc.constraint_name = k.constraint_name
				 AND tc.table_schema = k.table_schema
				 AND tc.table_name = k.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema
				  AND tc.table_name = c.table_name
				  AND k.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}

	return scanColumns(rows, func(rows *sql.Rows) (ColumnInfo, error) {
		var col ColumnInfo
		err := rows.Scan(&col.Name, &col.Type, &col.Size, &col.PrimaryKey)
		return col, err
	})
}
