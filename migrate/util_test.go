package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbmigrate/schema"
)

var timeStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// clock is a TimeSource that advances by step on every call.
type clock struct {
	mx   sync.Mutex
	now  time.Time
	step time.Duration
}

func newClock(step time.Duration) *clock {
	return &clock{now: timeStart, step: step}
}

func (c *clock) Now() time.Time {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type testEnv struct {
	db       *sql.DB
	fs       vfs.FileSystem
	registry *Registry
	clock    *clock
	events   []Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &testEnv{
		db:       db,
		fs:       memoryfs.New(),
		registry: NewRegistry(),
		clock:    newClock(time.Second),
	}
}

func (te *testEnv) newMigrator(t *testing.T, locs Locations, opts ...Option) *Migrator {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	disc := NewDiscoverer(te.fs, locs, te.registry, logger)
	opts = append([]Option{
		WithLogger(logger),
		WithTimeSource(te.clock),
		WithObserver(ObserverFunc(func(ev Event) { te.events = append(te.events, ev) })),
	}, opts...)

	m, err := NewMigrator(te.db, schema.NewSQLite(), disc, opts...)
	require.NoError(t, err)

	return m
}

func (te *testEnv) writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, te.fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, vfs.WriteFile(te.fs, path, []byte(content), 0o644))
}

func (te *testEnv) tables(t *testing.T) []string {
	t.Helper()
	tables, err := schema.NewSQLite().TableNames(context.Background(), te.db)
	require.NoError(t, err)
	return tables
}

func createTable(table string) Factory {
	return func() Migration {
		return NewReversible(
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

func failing(msg string) Factory {
	return func() Migration {
		return NewReversible(
			func(context.Context, *schema.Builder) error { return fmt.Errorf("%s", msg) },
			func(context.Context, *schema.Builder) error { return fmt.Errorf("%s", msg) },
		)
	}
}

func recordNamesOf(recs []Record) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	return names
}

func sourceNames(srcs []Source) []string {
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name
	}
	return names
}
