package generator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.hackfix.me/dbmigrate/schema"
)

// Field is a column parsed from a fields specification, e.g.
// "title:string(12):notNull:unique".
type Field struct {
	Name string
	// Calls are the column type and modifiers, in the order given.
	Calls []Call
}

// Call is a column type or modifier method call.
type Call struct {
	Method string
	Args   []string
}

// ForeignKey is a foreign key of a field to a related table.
type ForeignKey struct {
	Column        string
	RelatedTable  string
	RelatedColumn string
}

var (
	fieldSepRx   = regexp.MustCompile(`\s*:\s*`)
	callRx       = regexp.MustCompile(`^(\w+)(?:\((.*)\))?$`)
	foreignKeyRx = regexp.MustCompile(`^foreignKey(?:\(\s*(\w*)\s*(\w*)\s*\))?$`)
)

// ParseFields parses a comma-separated fields specification. Each field is
// a name followed by colon-separated calls: a column type, modifiers, and an
// optional foreignKey(table column) declaration, e.g.
//
//	title:string(12):notNull,author_id:integer:foreignKey(user id)
//
// The related table of a foreign key defaults to the field name without its
// "_id" suffix.
func ParseFields(spec string) ([]Field, []ForeignKey, error) {
	var (
		fields []Field
		fks    []ForeignKey
	)

	for _, raw := range splitOutsideParens(spec, ',') {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		chunks := fieldSepRx.Split(raw, -1)
		f := Field{Name: chunks[0]}
		if !identRx.MatchString(f.Name) {
			return nil, nil, fmt.Errorf("invalid field name '%s'", f.Name)
		}

		for _, chunk := range chunks[1:] {
			if m := foreignKeyRx.FindStringSubmatch(chunk); m != nil {
				fk := ForeignKey{Column: f.Name, RelatedTable: m[1], RelatedColumn: m[2]}
				if fk.RelatedTable == "" {
					fk.RelatedTable = strings.TrimSuffix(f.Name, "_id")
				}
				fks = append(fks, fk)
				continue
			}

			c, err := parseCall(chunk)
			if err != nil {
				return nil, nil, fmt.Errorf("field '%s': %w", f.Name, err)
			}
			f.Calls = append(f.Calls, c)
		}

		if len(f.Calls) == 0 || !isColumnType(f.Calls[0].Method) {
			// Only modifiers were given, e.g. "title:notNull".
			f.Calls = append([]Call{{Method: "string"}}, f.Calls...)
		}

		fields = append(fields, f)
	}

	return fields, fks, nil
}

var identRx = regexp.MustCompile(`^\w+$`)

func parseCall(chunk string) (Call, error) {
	m := callRx.FindStringSubmatch(strings.TrimSpace(chunk))
	if m == nil {
		return Call{}, fmt.Errorf("invalid column definition '%s'", chunk)
	}

	c := Call{Method: m[1]}
	if _, ok := columnTypes[c.Method]; !ok {
		if _, ok := modifiers[c.Method]; !ok {
			return Call{}, fmt.Errorf("unknown column type or modifier '%s'", c.Method)
		}
	}

	if args := strings.TrimSpace(m[2]); args != "" {
		for _, a := range splitOutsideParens(args, ',') {
			c.Args = append(c.Args, normalizeArg(strings.TrimSpace(a)))
		}
	}

	return c, nil
}

// normalizeArg converts single-quoted string literals to Go string literals.
func normalizeArg(arg string) string {
	if len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\'' {
		return strconv.Quote(strings.ReplaceAll(arg[1:len(arg)-1], `\'`, `'`))
	}
	return arg
}

// splitOutsideParens splits s by sep, except inside parentheses and quotes.
func splitOutsideParens(s string, sep rune) []string {
	var (
		parts []string
		depth int
		start int
		quote rune
	)
	for i, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"':
			quote = r
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + len(string(sep))
			}
		}
	}
	return append(parts, s[start:])
}

// Column type shortcuts of schema.Builder, by the name used in field
// specifications.
var columnTypes = map[string]schema.ColumnType{
	"primaryKey":    schema.TypePK,
	"bigPrimaryKey": schema.TypeBigPK,
	"char":          schema.TypeChar,
	"string":        schema.TypeString,
	"text":          schema.TypeText,
	"tinyInteger":   schema.TypeTinyInt,
	"smallInteger":  schema.TypeSmallInt,
	"integer":       schema.TypeInteger,
	"bigInteger":    schema.TypeBigInt,
	"float":         schema.TypeFloat,
	"double":        schema.TypeDouble,
	"decimal":       schema.TypeDecimal,
	"money":         schema.TypeMoney,
	"dateTime":      schema.TypeDateTime,
	"timestamp":     schema.TypeTimestamp,
	"time":          schema.TypeTime,
	"date":          schema.TypeDate,
	"binary":        schema.TypeBinary,
	"boolean":       schema.TypeBoolean,
	"json":          schema.TypeJSON,
}

// Go method names of the column types, where they differ from the field
// specification name with an upper case first letter.
var goMethodNames = map[string]string{
	"json": "JSON",
}

// Column modifiers and the number of arguments they take.
var modifiers = map[string]int{
	"notNull":           0,
	"null":              0,
	"unique":            0,
	"unsigned":          0,
	"first":             0,
	"defaultValue":      1,
	"defaultExpression": 1,
	"comment":           1,
	"check":             1,
	"after":             1,
	"append":            1,
}

func isColumnType(method string) bool {
	_, ok := columnTypes[method]
	return ok
}

func goMethod(method string) string {
	if n, ok := goMethodNames[method]; ok {
		return n
	}
	return strings.ToUpper(method[:1]) + method[1:]
}

// HasPrimaryKey returns true if the field is a primary key column.
func (f Field) HasPrimaryKey() bool {
	for _, c := range f.Calls {
		if c.Method == "primaryKey" || c.Method == "bigPrimaryKey" {
			return true
		}
	}
	return false
}

// GoExpr returns the Go expression building the column, e.g.
// `b.String(12).NotNull()`.
func (f Field) GoExpr() string {
	var sb strings.Builder
	sb.WriteString("b")
	for _, c := range f.Calls {
		fmt.Fprintf(&sb, ".%s(%s)", goMethod(c.Method), strings.Join(c.Args, ", "))
	}
	return sb.String()
}

// Column builds the schema column of the field.
func (f Field) Column() (*schema.Column, error) {
	if len(f.Calls) == 0 {
		return nil, fmt.Errorf("field '%s' has no column type", f.Name)
	}

	typ := f.Calls[0]
	sizes := make([]int, 0, len(typ.Args))
	for _, a := range typ.Args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("field '%s': invalid size '%s' of %s", f.Name, a, typ.Method)
		}
		sizes = append(sizes, n)
	}
	col := schema.NewColumn(columnTypes[typ.Method], sizes...)

	for _, c := range f.Calls[1:] {
		if isColumnType(c.Method) {
			return nil, fmt.Errorf("field '%s': more than one column type", f.Name)
		}
		if n := modifiers[c.Method]; len(c.Args) != n {
			return nil, fmt.Errorf("field '%s': %s expects %d argument(s), got %d", f.Name, c.Method, n, len(c.Args))
		}
		if err := applyModifier(col, c); err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
	}

	return col, nil
}

func applyModifier(col *schema.Column, c Call) error {
	var arg string
	if len(c.Args) > 0 {
		arg = c.Args[0]
	}

	switch c.Method {
	case "notNull":
		col.NotNull()
	case "null":
		col.Null()
	case "unique":
		col.Unique()
	case "unsigned":
		col.Unsigned()
	case "first":
		col.First()
	case "defaultValue":
		v, err := literal(arg)
		if err != nil {
			return err
		}
		col.DefaultValue(v)
	case "defaultExpression", "comment", "check", "after", "append":
		s, err := strconv.Unquote(arg)
		if err != nil {
			return fmt.Errorf("%s expects a string argument, got %s", c.Method, arg)
		}
		switch c.Method {
		case "defaultExpression":
			col.DefaultExpression(s)
		case "comment":
			col.Comment(s)
		case "check":
			col.Check(s)
		case "after":
			col.After(s)
		case "append":
			col.Append(s)
		}
	}

	return nil
}

// literal converts a Go literal argument to its value.
func literal(arg string) (any, error) {
	switch arg {
	case "nil":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if s, err := strconv.Unquote(arg); err == nil {
		return s, nil
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("invalid default value %s", arg)
}
