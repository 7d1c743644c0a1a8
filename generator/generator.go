package generator

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"go/format"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Command is the kind of migration to generate.
type Command string

// Supported commands.
const (
	CommandCreate     Command = "create"
	CommandTable      Command = "table"
	CommandDropTable  Command = "dropTable"
	CommandAddColumn  Command = "addColumn"
	CommandDropColumn Command = "dropColumn"
	CommandJunction   Command = "junction"
)

// Request describes the migration to generate.
type Request struct {
	Command Command
	// Name is the migration name for the create command, and the table name
	// for the others.
	Name string
	// And is the second table of a junction.
	And            string
	Fields         string
	TableComment   string
	UseTablePrefix bool
}

// Target is where the generated migration goes.
type Target struct {
	Name    string
	Format  migrate.Format
	Package string
}

// PrimaryKeyLookup returns the primary key columns of a table.
type PrimaryKeyLookup func(ctx context.Context, table string) ([]string, error)

// Generator renders migration skeletons.
type Generator struct {
	fs           vfs.FileSystem
	templatesDir string
	dialect      schema.Dialect
	tablePrefix  string
	pkLookup     PrimaryKeyLookup
	logger       *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemplatesDir loads templates from dir if it contains a file with the
// name of an embedded template.
func WithTemplatesDir(dir string) Option {
	return func(g *Generator) {
		g.templatesDir = dir
	}
}

// WithDialect sets the dialect SQL migrations are rendered for.
func WithDialect(d schema.Dialect) Option {
	return func(g *Generator) {
		g.dialect = d
	}
}

// WithTablePrefix sets the prefix of {{%name}} tables in SQL migrations.
func WithTablePrefix(prefix string) Option {
	return func(g *Generator) {
		g.tablePrefix = prefix
	}
}

// WithPrimaryKeyLookup sets the function used to find the related column of
// foreign keys declared without one.
func WithPrimaryKeyLookup(fn PrimaryKeyLookup) Option {
	return func(g *Generator) {
		g.pkLookup = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New returns a new Generator.
func New(fs vfs.FileSystem, opts ...Option) *Generator {
	g := &Generator{
		fs:      fs,
		dialect: schema.NewSQLite(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "generator")

	return g
}

// Validate checks the request, including its field specification.
func (r Request) Validate() error {
	if err := migrate.ValidateName(r.Name); err != nil {
		return err
	}

	switch r.Command {
	case CommandCreate:
		return nil
	case CommandTable, CommandDropTable, CommandAddColumn, CommandDropColumn, CommandJunction:
	default:
		return fmt.Errorf("unknown command '%s'", r.Command)
	}

	if !identRx.MatchString(r.Name) {
		return fmt.Errorf("invalid table name '%s'", r.Name)
	}
	if r.Command == CommandJunction && !identRx.MatchString(r.And) {
		return errors.New("junction requires a valid second table name")
	}

	fields, _, err := ParseFields(r.Fields)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := f.Column(); err != nil {
			return err
		}
	}

	return nil
}

// BaseName returns the name the migration identifier is generated from.
func (r Request) BaseName() string {
	name := titleWords(r.Name)
	switch r.Command {
	case CommandTable:
		return "Create_" + name + "_Table"
	case CommandDropTable:
		return "Drop_" + name + "_Table"
	case CommandAddColumn:
		return "Add_Column_" + name
	case CommandDropColumn:
		return "Drop_Column_" + name
	case CommandJunction:
		return "Junction_Table_For_" + name + "_And_" + titleWords(r.And) + "_Tables"
	default:
		return r.Name
	}
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// titleWords upper cases the first letter of each underscore separated word.
func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		words[i] = titleCaser.String(w)
	}
	return strings.Join(words, "_")
}

// Render generates the source of the migration.
func (g *Generator) Render(ctx context.Context, req Request, target Target) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	up, down, err := g.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	data := templateData{Name: target.Name, Package: target.Package}
	tmplName := "migration.go.tmpl"
	if target.Format == migrate.FormatSQL {
		tmplName = "migration.sql.tmpl"
		if data.Up, err = g.renderSQL(ctx, up); err != nil {
			return nil, err
		}
		if data.Down, err = g.renderSQL(ctx, down); err != nil {
			return nil, err
		}
	} else {
		if data.Package == "" {
			data.Package = "migrations"
		}
		data.Up, data.Down = stepCode(up), stepCode(down)
	}

	tmpl, err := g.loadTemplate(tmplName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed rendering template %s: %w", tmplName, err)
	}

	if target.Format == migrate.FormatSQL {
		return buf.Bytes(), nil
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed formatting generated migration: %w", err)
	}

	return src, nil
}

type templateData struct {
	Package string
	Name    string
	Up      []string
	Down    []string
}

var templateFuncs = template.FuncMap{
	"quote": strconv.Quote,
}

func (g *Generator) loadTemplate(name string) (*template.Template, error) {
	tmpl := template.New(name).Funcs(templateFuncs)

	if g.templatesDir != "" {
		path := filepath.Join(g.templatesDir, name)
		src, err := vfs.ReadFile(g.fs, path)
		switch {
		case err == nil:
			g.logger.Debug("using custom template", "path", path)
			return tmpl.Parse(string(src))
		case !vfs.IsErrNotExist(err):
			return nil, fmt.Errorf("failed reading template %s: %w", path, err)
		}
	}

	src, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, err
	}

	return tmpl.Parse(string(src))
}

// step is a single schema change, expressed both as Go code and as a
// function applying it to a Builder.
type step struct {
	code string
	run  func(ctx context.Context, b *schema.Builder) error
}

func stepCode(steps []step) []string {
	code := make([]string, len(steps))
	for i, s := range steps {
		code[i] = s.code
	}
	return code
}

// renderSQL runs the steps against a Builder that records the statements
// instead of executing them.
func (g *Generator) renderSQL(ctx context.Context, steps []step) ([]string, error) {
	rec := &recorder{}
	b := schema.NewBuilder(rec, g.dialect, schema.WithTablePrefix(g.tablePrefix))

	var lines []string
	for _, s := range steps {
		rec.stmts = rec.stmts[:0]
		err := s.run(ctx, b)
		var nserr *schema.NotSupportedError
		switch {
		case errors.As(err, &nserr):
			lines = append(lines, "-- "+err.Error())
			continue
		case err != nil:
			return nil, err
		}
		for _, stmt := range rec.stmts {
			lines = append(lines, stmt+";")
		}
	}

	return lines, nil
}

type recorder struct {
	stmts []string
}

func (r *recorder) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.stmts = append(r.stmts, query)
	return nil, nil
}

func (r *recorder) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("queries are not available while generating SQL")
}

func (r *recorder) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

type column struct {
	Field
	col *schema.Column
}

func (g *Generator) plan(ctx context.Context, req Request) (up, down []step, err error) {
	fields, fks, err := ParseFields(req.Fields)
	if err != nil {
		return nil, nil, err
	}

	table := req.Name
	switch req.Command {
	case CommandCreate:
		return nil, nil, nil
	case CommandTable, CommandDropTable:
		if !slices.ContainsFunc(fields, Field.HasPrimaryKey) {
			fields = append([]Field{{Name: "id", Calls: []Call{{Method: "primaryKey"}}}}, fields...)
		}
	case CommandJunction:
		table = req.Name + "_" + req.And
		first, second := req.Name+"_id", req.And+"_id"
		fields = append([]Field{
			{Name: first, Calls: []Call{{Method: "integer"}}},
			{Name: second, Calls: []Call{{Method: "integer"}}},
		}, fields...)
		fks = append([]ForeignKey{
			{Column: first, RelatedTable: req.Name},
			{Column: second, RelatedTable: req.And},
		}, fks...)
	}

	cols := make([]column, 0, len(fields))
	for _, f := range fields {
		col, err := f.Column()
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, column{Field: f, col: col})
	}

	fkUp, fkDown := g.foreignKeySteps(ctx, table, req.UseTablePrefix, fks)
	tbl := tableExpr(table, req.UseTablePrefix)

	switch req.Command {
	case CommandTable, CommandJunction:
		var raw []string
		if req.Command == CommandJunction {
			raw = append(raw, fmt.Sprintf("PRIMARY KEY(%s_id, %s_id)", req.Name, req.And))
		}
		up = append(up, createTableStep(tbl, cols, raw))
		if req.TableComment != "" {
			up = append(up, tableCommentStep(tbl, req.TableComment))
		}
		up = append(up, fkUp...)
		down = append(fkDown, dropTableStep(tbl))
	case CommandDropTable:
		up = append(fkDown, dropTableStep(tbl))
		down = append(down, createTableStep(tbl, cols, nil))
		down = append(down, fkUp...)
	case CommandAddColumn:
		for _, c := range cols {
			up = append(up, addColumnStep(tbl, c))
		}
		up = append(up, fkUp...)
		down = fkDown
		for _, c := range slices.Backward(cols) {
			down = append(down, dropColumnStep(tbl, c.Name))
		}
	case CommandDropColumn:
		up = fkDown
		for _, c := range cols {
			up = append(up, dropColumnStep(tbl, c.Name))
		}
		for _, c := range slices.Backward(cols) {
			down = append(down, addColumnStep(tbl, c))
		}
		down = append(down, fkUp...)
	}

	return up, down, nil
}

func tableExpr(table string, usePrefix bool) string {
	if usePrefix {
		return "{{%" + table + "}}"
	}
	return table
}

// foreignKeySteps returns the steps creating the index and constraint of
// each foreign key, and the steps dropping them in reverse order.
func (g *Generator) foreignKeySteps(
	ctx context.Context, table string, usePrefix bool, fks []ForeignKey,
) (up, down []step) {
	tbl := tableExpr(table, usePrefix)
	for _, fk := range fks {
		related := tableExpr(fk.RelatedTable, usePrefix)
		if fk.RelatedColumn == "" {
			fk.RelatedColumn = g.relatedColumn(ctx, related, fk.Column)
		}

		idx := fmt.Sprintf("idx-%s-%s", table, fk.Column)
		name := fmt.Sprintf("fk-%s-%s", table, fk.Column)
		column, relCol := fk.Column, fk.RelatedColumn

		up = append(up,
			step{
				code: fmt.Sprintf("b.CreateIndex(ctx, %q, %q, []string{%q}, false)", idx, tbl, column),
				run: func(ctx context.Context, b *schema.Builder) error {
					return b.CreateIndex(ctx, idx, tbl, []string{column}, false)
				},
			},
			step{
				code: fmt.Sprintf("b.AddForeignKey(ctx, %q, %q, []string{%q}, %q, []string{%q}, schema.Cascade, \"\")",
					name, tbl, column, related, relCol),
				run: func(ctx context.Context, b *schema.Builder) error {
					return b.AddForeignKey(ctx, name, tbl, []string{column}, related, []string{relCol}, schema.Cascade, "")
				},
			},
		)
		down = append([]step{
			{
				code: fmt.Sprintf("b.DropForeignKey(ctx, %q, %q)", name, tbl),
				run: func(ctx context.Context, b *schema.Builder) error {
					return b.DropForeignKey(ctx, name, tbl)
				},
			},
			{
				code: fmt.Sprintf("b.DropIndex(ctx, %q, %q)", idx, tbl),
				run: func(ctx context.Context, b *schema.Builder) error {
					return b.DropIndex(ctx, idx, tbl)
				},
			},
		}, down...)
	}

	return up, down
}

// relatedColumn returns the single primary key column of the related table,
// or "id" if it can't be determined.
func (g *Generator) relatedColumn(ctx context.Context, table, column string) string {
	const fallback = "id"
	if g.pkLookup == nil {
		return fallback
	}

	logger := g.logger.With("field", column, "table", table)
	pk, err := g.pkLookup(ctx, table)
	switch {
	case err != nil:
		logger.Warn("failed looking up the primary key of the related table; using default column",
			"column", fallback, "error", err)
		return fallback
	case len(pk) == 0:
		logger.Warn("related table doesn't exist or has no primary key; using default column",
			"column", fallback)
		return fallback
	case len(pk) > 1:
		logger.Warn("primary key of the related table is composite; using default column",
			"column", fallback)
		return fallback
	}

	return pk[0]
}

func createTableStep(table string, cols []column, raw []string) step {
	var code strings.Builder
	fmt.Fprintf(&code, "b.CreateTable(ctx, %q, []schema.ColumnDef{\n", table)
	defs := make([]schema.ColumnDef, 0, len(cols)+len(raw))
	for _, c := range cols {
		fmt.Fprintf(&code, "schema.Col(%q, %s),\n", c.Name, c.GoExpr())
		defs = append(defs, schema.Col(c.Name, c.col))
	}
	for _, r := range raw {
		fmt.Fprintf(&code, "schema.Raw(%q),\n", r)
		defs = append(defs, schema.Raw(r))
	}
	code.WriteString("})")

	return step{
		code: code.String(),
		run: func(ctx context.Context, b *schema.Builder) error {
			return b.CreateTable(ctx, table, defs)
		},
	}
}

func tableCommentStep(table, comment string) step {
	return step{
		code: fmt.Sprintf("b.AddCommentOnTable(ctx, %q, %q)", table, comment),
		run: func(ctx context.Context, b *schema.Builder) error {
			return b.AddCommentOnTable(ctx, table, comment)
		},
	}
}

func dropTableStep(table string) step {
	return step{
		code: fmt.Sprintf("b.DropTable(ctx, %q)", table),
		run: func(ctx context.Context, b *schema.Builder) error {
			return b.DropTable(ctx, table)
		},
	}
}

func addColumnStep(table string, c column) step {
	return step{
		code: fmt.Sprintf("b.AddColumn(ctx, %q, %q, %s)", table, c.Name, c.GoExpr()),
		run: func(ctx context.Context, b *schema.Builder) error {
			return b.AddColumn(ctx, table, c.Name, c.col)
		},
	}
}

func dropColumnStep(table, name string) step {
	return step{
		code: fmt.Sprintf("b.DropColumn(ctx, %q, %q)", table, name),
		run: func(ctx context.Context, b *schema.Builder) error {
			return b.DropColumn(ctx, table, name)
		},
	}
}
