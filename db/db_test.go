package db

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dsn  string
		exp  string
	}{
		{name: "ok/path", dsn: "/tmp/app.db", exp: "/tmp/app.db?_pragma=foreign_keys(1)"},
		{
			name: "ok/query",
			dsn:  "file:app.db?mode=memory",
			exp:  "file:app.db?mode=memory&_pragma=foreign_keys(1)",
		},
		{
			name: "ok/already_set",
			dsn:  "app.db?_pragma=foreign_keys(0)",
			exp:  "app.db?_pragma=foreign_keys(0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.exp, sqliteDSN(tt.dsn))
		})
	}
}

func TestOpenSQLiteForeignKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	d.SetMaxIdleConns(4)

	// Hold several connections at once, so that each one is checked.
	conns := make([]*sql.Conn, 0, 4)
	for range 4 {
		conn, err := d.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)

		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&enabled))
		assert.Equal(t, 1, enabled)
	}
	for _, c := range conns {
		require.NoError(t, c.Close())
	}

	_, err = Open(ctx, "oracle", "", slog.New(slog.DiscardHandler))
	assert.EqualError(t, err, "unsupported database dialect 'oracle'")
}
