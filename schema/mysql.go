package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// MySQL is the MySQL and MariaDB dialect.
type MySQL struct {
	base
}

var _ Dialect = (*MySQL)(nil)

// NewMySQL returns the MySQL dialect.
func NewMySQL() *MySQL {
	return &MySQL{base{
		name:       "mysql",
		quoteOpen:  "`",
		quoteClose: "`",
		typeMap: map[ColumnType]string{
			TypePK:        "int(11) NOT NULL AUTO_INCREMENT PRIMARY KEY",
			TypeBigPK:     "bigint(20) NOT NULL AUTO_INCREMENT PRIMARY KEY",
			TypeChar:      "char(1)",
			TypeString:    "varchar(255)",
			TypeText:      "text",
			TypeTinyInt:   "tinyint(3)",
			TypeSmallInt:  "smallint(6)",
			TypeInteger:   "int(11)",
			TypeBigInt:    "bigint(20)",
			TypeFloat:     "float",
			TypeDouble:    "double",
			TypeDecimal:   "decimal(10,0)",
			TypeDateTime:  "datetime",
			TypeTimestamp: "timestamp",
			TypeTime:      "time",
			TypeDate:      "date",
			TypeBinary:    "blob",
			TypeBoolean:   "tinyint(1)",
			TypeMoney:     "decimal(19,4)",
			TypeJSON:      "json",
		},
	}}
}

// ColumnType implements the Dialect interface.
func (d *MySQL) ColumnType(t ColumnType, size []int, unsigned bool) string {
	typ := d.base.ColumnType(t, size, unsigned)
	if unsigned && t.numeric() {
		typ += " UNSIGNED"
	}
	return typ
}

// InlineColumnComments implements the Dialect interface.
func (d *MySQL) InlineColumnComments() bool {
	return true
}

// SupportsPlacement implements the Dialect interface.
func (d *MySQL) SupportsPlacement() bool {
	return true
}

// RenameTable implements the Dialect interface.
func (d *MySQL) RenameTable(from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.Quote(from), d.Quote(to))
}

// AlterColumn implements the Dialect interface.
func (d *MySQL) AlterColumn(table, column string, col *Column) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s",
		d.Quote(table), d.Quote(column), d.Quote(column), col.SQL(d))}, nil
}

// DropPrimaryKey implements the Dialect interface.
func (d *MySQL) DropPrimaryKey(_, table string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", d.Quote(table)), nil
}

// DropForeignKey implements the Dialect interface.
func (d *MySQL) DropForeignKey(name, table string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.Quote(table), d.Quote(name)), nil
}

// DropIndex implements the Dialect interface.
func (d *MySQL) DropIndex(name, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.Quote(name), d.Quote(table))
}

// CommentOnColumn implements the Dialect interface. MySQL can only change a
// column comment by redefining the column, which is done with AlterColumn and
// Column.Comment.
func (d *MySQL) CommentOnColumn(string, string, sql.Null[string]) (string, error) {
	return "", d.notSupported("comment on column")
}

// CommentOnTable implements the Dialect interface.
func (d *MySQL) CommentOnTable(table string, comment sql.Null[string]) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s COMMENT %s", d.Quote(table), d.QuoteValue(comment.V)), nil
}

// ForeignKeyChecks implements the Dialect interface.
func (d *MySQL) ForeignKeyChecks(enabled bool) string {
	if enabled {
		return "SET FOREIGN_KEY_CHECKS = 1"
	}
	return "SET FOREIGN_KEY_CHECKS = 0"
}

// TableNames implements the Dialect interface.
func (d *MySQL) TableNames(ctx context.Context, q Executor) ([]string, error) {
	return queryStrings(ctx, q, `SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
}

// Columns implements the Dialect interface.
func (d *MySQL) Columns(ctx context.Context, q Executor, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `SELECT
			COLUMN_NAME, DATA_TYPE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0), COLUMN_KEY = 'PRI'
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}

	return scanColumns(rows, func(rows *sql.Rows) (ColumnInfo, error) {
		var col ColumnInfo
		err := rows.Scan(&col.Name, &col.Type, &col.Size, &col.PrimaryKey)
		return col, err
	})
}
