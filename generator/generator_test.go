package generator

import (
	"bytes"
	"context"
	"errors"
	"go/parser"
	"go/token"
	"log/slog"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

func TestRequestBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		req     Request
		expName string
	}{
		{Request{Command: CommandCreate, Name: "seed_data"}, "seed_data"},
		{Request{Command: CommandTable, Name: "post"}, "Create_Post_Table"},
		{Request{Command: CommandTable, Name: "blog_post"}, "Create_Blog_Post_Table"},
		{Request{Command: CommandDropTable, Name: "post"}, "Drop_Post_Table"},
		{Request{Command: CommandAddColumn, Name: "post"}, "Add_Column_Post"},
		{Request{Command: CommandDropColumn, Name: "post"}, "Drop_Column_Post"},
		{Request{Command: CommandJunction, Name: "post", And: "tag"}, "Junction_Table_For_Post_And_Tag_Tables"},
	}

	for _, tt := range tests {
		t.Run(string(tt.req.Command)+"/"+tt.expName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expName, tt.req.BaseName())
		})
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    Request
		expErr string
	}{
		{name: "ok/create", req: Request{Command: CommandCreate, Name: `app\Seed`}},
		{name: "ok/table", req: Request{Command: CommandTable, Name: "post", Fields: "title:string"}},
		{
			name:   "err/name_chars",
			req:    Request{Command: CommandCreate, Name: "seed-data"},
			expErr: "The migration name should contain letters, digits, underscore and/or backslash characters only.",
		},
		{
			name:   "err/table_name",
			req:    Request{Command: CommandTable, Name: `app\post`},
			expErr: `invalid table name 'app\post'`,
		},
		{
			name:   "err/junction_without_and",
			req:    Request{Command: CommandJunction, Name: "post"},
			expErr: "junction requires a valid second table name",
		},
		{
			name:   "err/command",
			req:    Request{Command: "alterTable", Name: "post"},
			expErr: "unknown command 'alterTable'",
		},
		{
			name:   "err/fields",
			req:    Request{Command: CommandAddColumn, Name: "post", Fields: "x:integer:text"},
			expErr: "field 'x': more than one column type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.expErr != "" {
				assert.EqualError(t, err, tt.expErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGeneratorRenderGo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name        string
		req         Request
		expContains []string
	}{
		{
			name: "ok/create",
			req:  Request{Command: CommandCreate, Name: "seed"},
			expContains: []string{
				"package migrations\n",
				`migrate.Register("m240101_120000_seed", func() migrate.Migration {`,
				"return migrate.NewReversible(",
			},
		},
		{
			name: "ok/table",
			req: Request{
				Command: CommandTable, Name: "post", TableComment: "Blog posts",
				Fields: "title:string(12):notNull,author_id:integer:foreignKey(user)",
			},
			expContains: []string{
				`schema.Col("id", b.PrimaryKey()),`,
				`schema.Col("title", b.String(12).NotNull()),`,
				`schema.Col("author_id", b.Integer()),`,
				`b.AddCommentOnTable(ctx, "post", "Blog posts")`,
				`b.CreateIndex(ctx, "idx-post-author_id", "post", []string{"author_id"}, false)`,
				`b.AddForeignKey(ctx, "fk-post-author_id", "post", []string{"author_id"}, "user", []string{"id"}, schema.Cascade, "")`,
				`b.DropForeignKey(ctx, "fk-post-author_id", "post")`,
				`b.DropTable(ctx, "post")`,
			},
		},
		{
			name: "ok/add_column_prefixed",
			req: Request{
				Command: CommandAddColumn, Name: "post", UseTablePrefix: true,
				Fields: "position:integer:defaultValue(0)",
			},
			expContains: []string{
				`b.AddColumn(ctx, "{{%post}}", "position", b.Integer().DefaultValue(0))`,
				`b.DropColumn(ctx, "{{%post}}", "position")`,
			},
		},
		{
			name: "ok/junction",
			req:  Request{Command: CommandJunction, Name: "post", And: "tag"},
			expContains: []string{
				`b.CreateTable(ctx, "post_tag", []schema.ColumnDef{`,
				`schema.Raw("PRIMARY KEY(post_id, tag_id)"),`,
				`b.AddForeignKey(ctx, "fk-post_tag-tag_id", "post_tag", []string{"tag_id"}, "tag", []string{"id"}, schema.Cascade, "")`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New(memoryfs.New(), WithLogger(slog.New(slog.DiscardHandler)))
			name := "m240101_120000_" + tt.req.BaseName()
			src, err := g.Render(ctx, tt.req, Target{Name: name, Format: migrate.FormatGo})
			require.NoError(t, err)

			_, err = parser.ParseFile(token.NewFileSet(), "migration.go", src, 0)
			require.NoError(t, err)
			for _, exp := range tt.expContains {
				assert.Contains(t, string(src), exp)
			}
		})
	}
}

func TestGeneratorRenderGoNamespaced(t *testing.T) {
	t.Parallel()

	g := New(memoryfs.New())
	src, err := g.Render(context.Background(),
		Request{Command: CommandCreate, Name: "seed"},
		Target{Name: `app\migrations\M240101120000Seed`, Format: migrate.FormatGo, Package: "appmigrations"})
	require.NoError(t, err)

	assert.Contains(t, string(src), "package appmigrations\n")
	assert.Contains(t, string(src), `migrate.Register("app\\migrations\\M240101120000Seed"`)
}

func TestGeneratorRenderSQL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	req := Request{
		Command: CommandTable, Name: "post",
		Fields: "title:string(12):notNull,author_id:integer:foreignKey(user)",
	}

	t.Run("ok/postgres", func(t *testing.T) {
		t.Parallel()

		g := New(memoryfs.New(), WithDialect(schema.NewPostgres()))
		src, err := g.Render(ctx, req, Target{Name: "m240101_120000_Create_Post_Table", Format: migrate.FormatSQL})
		require.NoError(t, err)

		assert.Equal(t, `-- m240101_120000_Create_Post_Table

-- +up
CREATE TABLE "post" (
	"id" serial NOT NULL PRIMARY KEY,
	"title" varchar(12) NOT NULL,
	"author_id" integer
);
CREATE INDEX "idx-post-author_id" ON "post" ("author_id");
ALTER TABLE "post" ADD CONSTRAINT "fk-post-author_id" FOREIGN KEY ("author_id") REFERENCES "user" ("id") ON DELETE CASCADE;

-- +down
ALTER TABLE "post" DROP CONSTRAINT "fk-post-author_id";
DROP INDEX "idx-post-author_id";
DROP TABLE "post";
`, string(src))

		mig, err := migrate.ParseSQL(src)
		require.NoError(t, err)
		assert.Equal(t, migrate.Reversible, mig.Kind())
	})

	t.Run("ok/sqlite_unsupported", func(t *testing.T) {
		t.Parallel()

		g := New(memoryfs.New(), WithTablePrefix("app_"))
		req := req
		req.UseTablePrefix = true
		src, err := g.Render(ctx, req, Target{Name: "m240101_120000_Create_Post_Table", Format: migrate.FormatSQL})
		require.NoError(t, err)

		assert.Contains(t, string(src), "CREATE TABLE \"app_post\" (\n")
		assert.Contains(t, string(src), "-- add foreign key is not supported by sqlite\n")
		assert.Contains(t, string(src), "DROP TABLE \"app_post\";\n")

		_, err = migrate.ParseSQL(src)
		require.NoError(t, err)
	})
}

func TestGeneratorRelatedColumn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logBuf := &bytes.Buffer{}
	lookup := func(_ context.Context, table string) ([]string, error) {
		switch table {
		case "user":
			return []string{"uid"}, nil
		case "post_tag":
			return []string{"post_id", "tag_id"}, nil
		default:
			return nil, errors.New("connection refused")
		}
	}
	g := New(memoryfs.New(),
		WithDialect(schema.NewPostgres()),
		WithPrimaryKeyLookup(lookup),
		WithLogger(slog.New(slog.NewTextHandler(logBuf, nil))),
	)

	src, err := g.Render(ctx, Request{
		Command: CommandAddColumn,
		Name:    "comment",
		Fields:  "user_id:integer:foreignKey,post_tag_id:integer:foreignKey,x_id:integer:foreignKey(other ref)",
	}, Target{Name: "m240101_120000_Add_Column_Comment", Format: migrate.FormatSQL})
	require.NoError(t, err)

	assert.Contains(t, string(src), `REFERENCES "user" ("uid")`)
	assert.Contains(t, string(src), `REFERENCES "post_tag" ("id")`)
	assert.Contains(t, string(src), `REFERENCES "other" ("ref")`)
	assert.Contains(t, logBuf.String(), "primary key of the related table is composite")
	assert.NotContains(t, logBuf.String(), "connection refused")
}

func TestGeneratorCustomTemplate(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("/tpl", 0o755))
	require.NoError(t, vfs.WriteFile(fs, "/tpl/migration.sql.tmpl",
		[]byte("-- custom {{.Name}}\n-- +up\n{{range .Up}}{{.}}\n{{end}}"), 0o644))

	g := New(fs, WithTemplatesDir("/tpl"))
	src, err := g.Render(context.Background(),
		Request{Command: CommandDropTable, Name: "post"},
		Target{Name: "m240101_120000_Drop_Post_Table", Format: migrate.FormatSQL})
	require.NoError(t, err)
	assert.Equal(t, "-- custom m240101_120000_Drop_Post_Table\n-- +up\nDROP TABLE \"post\";\n", string(src))

	// The Go template isn't overridden.
	src, err = g.Render(context.Background(),
		Request{Command: CommandDropTable, Name: "post"},
		Target{Name: "m240101_120000_Drop_Post_Table", Format: migrate.FormatGo})
	require.NoError(t, err)
	assert.Contains(t, string(src), "return migrate.NewReversible(")
}
