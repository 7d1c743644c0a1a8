package app

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbmigrate/app/config"
	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/db"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

var timeStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// clock is a TimeSource that advances by step on every call.
type clock struct {
	mx   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type testApp struct {
	*App
	t              *testing.T
	db             *db.DB
	fs             vfs.FileSystem
	cfg            *config.Config
	registry       *migrate.Registry
	stdin          *safeBuffer
	stdout, stderr *safeBuffer
	env            *mockEnv
}

// newTestApp returns an app backed by a file SQLite database, an in-memory
// filesystem, and its own migration registry. Migrations are discovered in
// and created in /migrations.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ctx := t.Context()
	logger := slog.New(slog.DiscardHandler)
	d, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	cfg := config.NewConfig(memoryfs.New(), "/config.json")
	cfg.Migrations.Paths = []string{"/migrations"}
	cfg.Create.Path = sql.Null[string]{V: "/migrations", Valid: true}
	cfg.Compact = sql.Null[bool]{V: true, Valid: true}

	var (
		fs                    = memoryfs.New()
		reg                   = migrate.NewRegistry()
		stdin, stdout, stderr = newSafeBuffer(), newSafeBuffer(), newSafeBuffer()
		env                   = &mockEnv{env: map[string]string{}}
	)

	opts := []Option{
		WithTimeSource(&clock{now: timeStart, step: time.Second}),
		WithEnv(env),
		WithDB(d),
		WithConfig(cfg),
		WithContext(ctx),
		WithFDs(stdin, stdout, stderr),
		WithFS(fs),
		WithRegistry(reg),
		WithLogger(false, false),
	}
	app, err := New("dbmigrate", "/config.json", opts...)
	require.NoError(t, err)

	return &testApp{
		App: app, t: t, db: d, fs: fs, cfg: cfg, registry: reg,
		stdin: stdin, stdout: stdout, stderr: stderr, env: env,
	}
}

// Run runs the app with the given arguments. The output of previous runs is
// discarded.
func (ta *testApp) Run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.App.Run(args)
}

// answer queues the answers of the next prompts.
func (ta *testApp) answer(lines ...string) {
	ta.stdin.Reset()
	_, err := ta.stdin.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(ta.t, err)
}

func (ta *testApp) register(name string, f migrate.Factory) {
	require.NoError(ta.t, ta.registry.Add(name, f))
}

func (ta *testApp) writeFile(path, content string) {
	require.NoError(ta.t, ta.fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(ta.t, vfs.WriteFile(ta.fs, path, []byte(content), 0o644))
}

func (ta *testApp) tables() []string {
	tables, err := ta.db.Dialect().TableNames(ta.t.Context(), ta.db)
	require.NoError(ta.t, err)
	return tables
}

func (ta *testApp) history() []string {
	rows, err := ta.db.QueryContext(ta.t.Context(),
		`SELECT name FROM migration ORDER BY apply_time, name`)
	require.NoError(ta.t, err)
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		require.NoError(ta.t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(ta.t, rows.Err())

	return names
}

func createTable(table string) migrate.Factory {
	return func() migrate.Migration {
		return migrate.NewReversible(
			func(ctx context.Context, b *schema.Builder) error {
				return b.CreateTable(ctx, table, []schema.ColumnDef{
					schema.Col("id", b.PrimaryKey()),
					schema.Col("title", b.String().NotNull()),
				})
			},
			func(ctx context.Context, b *schema.Builder) error {
				return b.DropTable(ctx, table)
			},
		)
	}
}

type mockEnv struct {
	mx  sync.RWMutex
	env map[string]string
}

var _ actx.Environment = (*mockEnv)(nil)

func (me *mockEnv) Get(key string) string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return me.env[key]
}

func (me *mockEnv) Set(key, val string) error {
	me.mx.Lock()
	defer me.mx.Unlock()
	me.env[key] = val
	return nil
}

// safeBuffer is a thread-safe buffer.
type safeBuffer struct {
	mx  sync.RWMutex
	buf *bytes.Buffer
}

var _ io.ReadWriter = (*safeBuffer)(nil)

func newSafeBuffer() *safeBuffer {
	return &safeBuffer{buf: &bytes.Buffer{}}
}

func (b *safeBuffer) Read(p []byte) (n int, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Read(p)
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buf.Reset()
}

func (b *safeBuffer) String() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.String()
}
