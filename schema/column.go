package schema

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ColumnType is an abstract column type, mapped to a concrete type by each
// Dialect.
type ColumnType string

// Abstract column types.
const (
	TypePK        ColumnType = "pk"
	TypeBigPK     ColumnType = "bigpk"
	TypeChar      ColumnType = "char"
	TypeString    ColumnType = "string"
	TypeText      ColumnType = "text"
	TypeTinyInt   ColumnType = "tinyint"
	TypeSmallInt  ColumnType = "smallint"
	TypeInteger   ColumnType = "integer"
	TypeBigInt    ColumnType = "bigint"
	TypeFloat     ColumnType = "float"
	TypeDouble    ColumnType = "double"
	TypeDecimal   ColumnType = "decimal"
	TypeDateTime  ColumnType = "datetime"
	TypeTimestamp ColumnType = "timestamp"
	TypeTime      ColumnType = "time"
	TypeDate      ColumnType = "date"
	TypeBinary    ColumnType = "binary"
	TypeBoolean   ColumnType = "boolean"
	TypeMoney     ColumnType = "money"
	TypeJSON      ColumnType = "json"
)

func (t ColumnType) numeric() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt,
		TypeFloat, TypeDouble, TypeDecimal, TypeMoney:
		return true
	}
	return false
}

func (t ColumnType) primaryKey() bool {
	return t == TypePK || t == TypeBigPK
}

// Column describes a column definition. It's built with the type shortcuts
// of Builder and chained modifiers, e.g. b.String(64).NotNull().Unique().
type Column struct {
	typ      ColumnType
	size     []int
	notNull  sql.Null[bool]
	unique   bool
	def      any
	hasDef   bool
	defExpr  string
	comment  sql.Null[string]
	unsigned bool
	check    string
	after    string
	first    bool
	extra    string
}

// NewColumn returns a column of the given type and optional size. Decimal
// types accept a precision and a scale.
func NewColumn(typ ColumnType, size ...int) *Column {
	return &Column{typ: typ, size: size}
}

// Type returns the abstract type of the column.
func (c *Column) Type() ColumnType {
	return c.typ
}

// NotNull adds a NOT NULL constraint.
func (c *Column) NotNull() *Column {
	c.notNull = sql.Null[bool]{V: true, Valid: true}
	return c
}

// Null explicitly allows NULL values.
func (c *Column) Null() *Column {
	c.notNull = sql.Null[bool]{V: false, Valid: true}
	return c
}

// Unique adds a UNIQUE constraint.
func (c *Column) Unique() *Column {
	c.unique = true
	return c
}

// DefaultValue sets a literal default value. A nil value renders DEFAULT NULL.
func (c *Column) DefaultValue(v any) *Column {
	c.def = v
	c.hasDef = true
	c.defExpr = ""
	return c
}

// DefaultExpression sets a raw SQL expression as the default value.
func (c *Column) DefaultExpression(expr string) *Column {
	c.defExpr = expr
	c.hasDef = false
	return c
}

// Comment sets the column comment.
func (c *Column) Comment(comment string) *Column {
	c.comment = sql.Null[string]{V: comment, Valid: true}
	return c
}

// Unsigned marks a numeric column as unsigned. Only MySQL renders it.
func (c *Column) Unsigned() *Column {
	c.unsigned = true
	return c
}

// Check adds a CHECK constraint with the given SQL expression.
func (c *Column) Check(expr string) *Column {
	c.check = expr
	return c
}

// After places the column after another one. Only MySQL renders it.
func (c *Column) After(column string) *Column {
	c.after = column
	c.first = false
	return c
}

// First places the column first in the table. Only MySQL renders it.
func (c *Column) First() *Column {
	c.first = true
	c.after = ""
	return c
}

// Append adds raw SQL at the end of the definition.
func (c *Column) Append(sql string) *Column {
	if c.extra != "" {
		c.extra += " "
	}
	c.extra += sql
	return c
}

// SQL renders the column definition for the given dialect.
func (c *Column) SQL(d Dialect) string {
	parts := []string{d.ColumnType(c.typ, c.size, c.unsigned)}

	if c.notNull.Valid && !c.typ.primaryKey() {
		if c.notNull.V {
			parts = append(parts, "NOT NULL")
		} else {
			parts = append(parts, "NULL")
		}
	}
	if c.unique {
		parts = append(parts, "UNIQUE")
	}
	if def, ok := c.defaultSQL(d); ok {
		parts = append(parts, "DEFAULT "+def)
	}
	if c.check != "" {
		parts = append(parts, fmt.Sprintf("CHECK (%s)", c.check))
	}
	if c.comment.Valid && d.InlineColumnComments() {
		parts = append(parts, "COMMENT "+d.QuoteValue(c.comment.V))
	}
	if d.SupportsPlacement() {
		if c.after != "" {
			parts = append(parts, "AFTER "+d.Quote(c.after))
		} else if c.first {
			parts = append(parts, "FIRST")
		}
	}
	if c.extra != "" {
		parts = append(parts, c.extra)
	}

	return strings.Join(parts, " ")
}

func (c *Column) defaultSQL(d Dialect) (string, bool) {
	if c.defExpr != "" {
		return c.defExpr, true
	}
	if !c.hasDef {
		return "", false
	}

	switch v := c.def.(type) {
	case nil:
		return "NULL", true
	case bool:
		return d.BoolLiteral(v), true
	case string:
		return d.QuoteValue(v), true
	case time.Time:
		return d.QuoteValue(v.Format(time.DateTime)), true
	case fmt.Stringer:
		return d.QuoteValue(v.String()), true
	default:
		return fmt.Sprint(v), true
	}
}
