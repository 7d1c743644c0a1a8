package app

import (
	"database/sql"
	"testing"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbmigrate/app/config"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
)

const (
	postMig = "m250101_000001_create_post"
	userMig = "m250101_000002_create_user"
)

func TestAppUpDown(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))
	ta.register(userMig, createTable("user"))

	err := ta.Run("up")
	require.NoError(t, err)
	out := ta.stdout.String()
	assert.Contains(t, out, "Total 2 new migrations to be applied:\n\t"+postMig+"\n\t"+userMig+"\n")
	assert.Contains(t, out, "*** applied "+postMig)
	assert.Contains(t, out, "2 migrations were applied.")
	assert.Contains(t, out, "Migrated up successfully.")
	assert.Equal(t, []string{postMig, userMig}, ta.history())
	assert.ElementsMatch(t, []string{"migration", "post", "user"}, ta.tables())

	err = ta.Run("history")
	require.NoError(t, err)
	assert.Regexp(t, `Showing the last 2 applied migrations:\n`+
		`\t\(2025-01-01 \d\d:\d\d:\d\d\) `+userMig+`\n`+
		`\t\(2025-01-01 \d\d:\d\d:\d\d\) `+postMig+`\n`, ta.stdout.String())

	err = ta.Run("down")
	require.NoError(t, err)
	out = ta.stdout.String()
	assert.Contains(t, out, "Total 1 migration to be reverted:\n\t"+userMig+"\n")
	assert.Contains(t, out, "*** reverted "+userMig)
	assert.Contains(t, out, "1 migration was reverted.")
	assert.Equal(t, []string{postMig}, ta.history())
	assert.ElementsMatch(t, []string{"migration", "post"}, ta.tables())

	err = ta.Run("new")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Found 1 new migration:\n\t"+userMig+"\n")

	err = ta.Run("redo")
	require.NoError(t, err)
	out = ta.stdout.String()
	assert.Contains(t, out, "Total 1 migration to be redone:\n\t"+postMig+"\n")
	assert.Contains(t, out, "1 migration was redone.")
	assert.Equal(t, []string{postMig}, ta.history())

	err = ta.Run("up")
	require.NoError(t, err)
	assert.Equal(t, []string{postMig, userMig}, ta.history())

	err = ta.Run("up")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "No new migrations found. Your system is up-to-date.")

	err = ta.Run("down", "--all")
	require.NoError(t, err)
	out = ta.stdout.String()
	assert.Contains(t, out, "Total 2 migrations to be reverted:\n\t"+userMig+"\n\t"+postMig+"\n")
	assert.Empty(t, ta.history())
	assert.Equal(t, []string{"migration"}, ta.tables())

	err = ta.Run("down")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "No migration has been done before.")
}

func TestAppUpLimit(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))
	ta.register(userMig, createTable("user"))

	err := ta.Run("up", "1")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Total 1 out of 2 new migrations to be applied:\n\t"+postMig+"\n")
	assert.Equal(t, []string{postMig}, ta.history())

	err = ta.Run("list")
	require.NoError(t, err)
	out := ta.stdout.String()
	assert.Regexp(t, postMig+`\s+go\s+applied\s+\S+ ago`, out)
	assert.Regexp(t, userMig+`\s+go\s+pending`, out)
}

func TestAppPrompt(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))

	ta.answer("no")
	err := ta.Run("up")
	require.NoError(t, err)
	out := ta.stdout.String()
	assert.Contains(t, out, "Apply the above migration? (yes|no) [yes]:")
	assert.NotContains(t, out, "Migrated up successfully.")
	assert.Empty(t, ta.history())

	ta.answer("maybe", "y")
	err = ta.Run("up")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Migrated up successfully.")
	assert.Equal(t, []string{postMig}, ta.history())
}

func TestAppToMark(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))
	ta.register(userMig, createTable("user"))

	err := ta.Run("to", "250101_000001")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Total 1 new migration to be applied:\n\t"+postMig+"\n")
	assert.Equal(t, []string{postMig}, ta.history())

	err = ta.Run("to", postMig)
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Already at '"+postMig+"'. Nothing needs to be done.")

	err = ta.Run("to", userMig)
	require.NoError(t, err)
	assert.Equal(t, []string{postMig, userMig}, ta.history())

	err = ta.Run("to", "base")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Total 2 migrations to be reverted:")
	assert.Empty(t, ta.history())

	err = ta.Run("mark", userMig)
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(),
		"The migration history is set at "+userMig+".\nNo actual migration was performed.")
	assert.Equal(t, []string{postMig, userMig}, ta.history())
	assert.Equal(t, []string{"migration"}, ta.tables())

	err = ta.Run("mark", postMig)
	require.NoError(t, err)
	assert.Equal(t, []string{postMig}, ta.history())

	err = ta.Run("to", "m250101_000009_missing")
	assert.ErrorContains(t, err, "migration 'm250101_000009_missing' not found")
	assert.Equal(t, aerrors.ExitFailure, aerrors.ExitCode(err))

	err = ta.Run("to", "not a version")
	require.Error(t, err)
	assert.Equal(t, aerrors.ExitValidation, aerrors.ExitCode(err))
}

func TestAppFresh(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))
	ta.register(userMig, createTable("user"))

	err := ta.Run("up")
	require.NoError(t, err)
	_, err = ta.db.ExecContext(t.Context(), `CREATE TABLE "other" ("id" integer)`)
	require.NoError(t, err)

	err = ta.Run("fresh")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), "Action was cancelled by user. Nothing has been performed.")
	assert.ElementsMatch(t, []string{"migration", "other", "post", "user"}, ta.tables())

	err = ta.Run("fresh", "--yes")
	require.NoError(t, err)
	out := ta.stdout.String()
	assert.Contains(t, out, "Dropped 4 tables.")
	assert.Contains(t, out, "2 migrations were applied.")
	assert.ElementsMatch(t, []string{"migration", "post", "user"}, ta.tables())
	assert.Equal(t, []string{postMig, userMig}, ta.history())
}

func TestAppFailure(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.register(postMig, createTable("post"))
	ta.register(userMig, createTable("post"))

	err := ta.Run("up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 migrations were applied")
	assert.Equal(t, aerrors.ExitFailure, aerrors.ExitCode(err))
	out := ta.stdout.String()
	assert.Contains(t, out, "*** failed to apply "+userMig)
	assert.Contains(t, out, "1 from 2 migrations was applied.")
	assert.Equal(t, []string{postMig}, ta.history())
}

func TestAppValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		expErr string
	}{
		{
			name:   "err/down_limit",
			args:   []string{"down", "0"},
			expErr: "the limit argument must be greater than 0",
		},
		{
			name:   "err/history_limit",
			args:   []string{"history", "0"},
			expErr: "the limit argument must be greater than 0",
		},
		{
			name:   "err/unknown_command",
			args:   []string{"sideways"},
			expErr: "failed parsing CLI arguments",
		},
		{
			name:   "err/driver",
			args:   []string{"--driver", "oracle", "new"},
			expErr: "unsupported database dialect 'oracle'",
		},
		{
			name:   "err/namespace_flag",
			args:   []string{"--migration-namespace", "app", "new"},
			expErr: "invalid migration namespace 'app', expected <namespace>=<path>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t)
			err := ta.Run(tt.args...)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.expErr)
			assert.Equal(t, aerrors.ExitValidation, aerrors.ExitCode(err))
		})
	}
}

func TestAppCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		setup       func(*config.Config)
		expFile     string
		expContains []string
		expErr      string
		expExitCode int
	}{
		{
			name:    "ok/go",
			args:    []string{"create", "create_post", "--yes"},
			expFile: "/migrations/m250101_000001_create_post.go",
			expContains: []string{
				"package migrations\n",
				`migrate.Register("m250101_000001_create_post"`,
			},
		},
		{
			name: "ok/sql_table",
			args: []string{
				"create", "post", "--command", "table", "--format", "sql", "--yes",
				"--fields", "title:string(12):notNull",
			},
			expFile: "/migrations/m250101_000001_Create_Post_Table.sql",
			expContains: []string{
				"-- m250101_000001_Create_Post_Table\n",
				`"title" varchar(12) NOT NULL`,
				"-- +down\nDROP TABLE \"post\";\n",
			},
		},
		{
			name: "ok/namespace",
			args: []string{"create", "seed", "--namespace", `app\migrations`, "--yes"},
			setup: func(cfg *config.Config) {
				cfg.Migrations.Namespaces = []config.Namespace{{Name: `app\migrations`, Path: "/ns"}}
			},
			expFile: "/ns/M250101000001Seed.go",
			expContains: []string{
				"package ns\n",
				`migrate.Register("app\\migrations\\M250101000001Seed"`,
			},
		},
		{
			name: "ok/namespaced_name",
			args: []string{"create", `app\migrations\create_post`, "--yes"},
			setup: func(cfg *config.Config) {
				cfg.Migrations.Namespaces = []config.Namespace{{Name: `app\migrations`, Path: "/ns"}}
			},
			expFile: "/ns/M250101000001CreatePost.go",
			expContains: []string{
				"package ns\n",
				`migrate.Register("app\\migrations\\M250101000001CreatePost"`,
			},
		},
		{
			name:        "err/namespaced_name_unknown",
			args:        []string{"create", `other\create_post`, "--yes"},
			expErr:      "no directory is configured for the migration namespace 'other'",
			expExitCode: aerrors.ExitValidation,
		},
		{
			name:        "err/invalid_name",
			args:        []string{"create", "bad-name", "--yes"},
			expErr:      "The migration name should contain letters, digits, underscore and/or backslash characters only.",
			expExitCode: aerrors.ExitValidation,
		},
		{
			name:        "err/invalid_fields",
			args:        []string{"create", "post", "--command", "table", "--fields", "title:varchar", "--yes"},
			expErr:      "field 'title': unknown column type or modifier 'varchar'",
			expExitCode: aerrors.ExitValidation,
		},
		{
			name:        "err/no_location",
			args:        []string{"create", "create_post", "--yes"},
			setup:       func(cfg *config.Config) { cfg.Create.Path = sql.Null[string]{} },
			expErr:      "either a create path or a create namespace must be configured",
			expExitCode: aerrors.ExitValidation,
		},
		{
			name:        "err/unknown_namespace",
			args:        []string{"create", "seed", "--namespace", "other", "--yes"},
			expErr:      "no directory is configured for the migration namespace 'other'",
			expExitCode: aerrors.ExitValidation,
		},
		{
			name:        "err/name_too_long",
			args:        []string{"create", "create_post", "--max-name-length", "10", "--yes"},
			expErr:      "the migration name is too long: 26 characters, the limit is 10",
			expExitCode: aerrors.ExitValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t)
			if tt.setup != nil {
				tt.setup(ta.cfg)
			}

			err := ta.Run(tt.args...)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.expErr)
				assert.Equal(t, tt.expExitCode, aerrors.ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, ta.stdout.String(), "New migration created successfully.")

			src, err := vfs.ReadFile(ta.fs, tt.expFile)
			require.NoError(t, err)
			for _, exp := range tt.expContains {
				assert.Contains(t, string(src), exp)
			}
		})
	}
}

func TestAppFlagsDontPersist(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)

	err := ta.Run("create", "create_post", "--max-name-length", "10", "--yes")
	require.Error(t, err)
	assert.ErrorContains(t, err, "the limit is 10")

	err = ta.Run("create", "create_post", "--yes")
	require.NoError(t, err)
	assert.False(t, ta.cfg.History.MaxNameLength.Valid)
	assert.False(t, ta.cfg.Database.Driver.Valid)
}

func TestAppCreateNamespacedSQL(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.cfg.Migrations.Namespaces = []config.Namespace{{Name: `app\migrations`, Path: "/ns"}}

	err := ta.Run("create", `app\migrations\create_post`, "--format", "sql", "--yes")
	require.NoError(t, err)

	_, err = ta.fs.Stat("/ns/M250101000001CreatePost.sql")
	require.NoError(t, err)

	err = ta.Run("new")
	require.NoError(t, err)
	assert.Contains(t, ta.stdout.String(), `app\migrations\M250101000001CreatePost`)
	assert.NotContains(t, ta.stdout.String(), "No new migrations found.")
}

func TestAppCreateAndApplySQL(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)

	err := ta.Run("create", "post", "--command", "table", "--format", "sql", "--yes",
		"--fields", "title:string(12):notNull,body:text")
	require.NoError(t, err)

	err = ta.Run("up", "--yes")
	require.NoError(t, err)
	assert.Equal(t, []string{"m250101_000001_Create_Post_Table"}, ta.history())
	assert.ElementsMatch(t, []string{"migration", "post"}, ta.tables())

	err = ta.Run("down", "--yes")
	require.NoError(t, err)
	assert.Empty(t, ta.history())
	assert.Equal(t, []string{"migration"}, ta.tables())
}

func TestAppCreateGoWithoutRegistration(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.writeFile("/migrations/"+postMig+".go", "package migrations\n")

	err := ta.Run("up")
	require.Error(t, err)
	assert.ErrorContains(t, err, "migration '"+postMig+"' not found")
	assert.Empty(t, ta.history())
}
