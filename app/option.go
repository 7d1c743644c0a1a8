package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/mandelsoft/vfs/pkg/vfs"

	cfg "go.hackfix.me/dbmigrate/app/config"
	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/db"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/models"
)

// Option is a function that allows configuring the application.
type Option func(*App)

// WithConfig sets the configuration object. It's used instead of loading the
// configuration file.
func WithConfig(cfg *cfg.Config) Option {
	return func(app *App) {
		app.cfg = cfg
		app.cfgSet = cfg != nil
	}
}

// WithContext sets the main context.
func WithContext(ctx context.Context) Option {
	return func(app *App) {
		app.ctx.Ctx = ctx
	}
}

// WithDB sets the database migrations are run against. The caller is
// responsible for closing it.
func WithDB(d *db.DB) Option {
	return func(app *App) {
		app.ctx.DB = d
		app.ownDB = d == nil
	}
}

// WithEnv sets the process environment used by the application.
func WithEnv(env actx.Environment) Option {
	return func(app *App) {
		app.ctx.Env = env
	}
}

// WithFDs sets the file descriptors used by the application.
func WithFDs(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(app *App) {
		app.ctx.Stdin = stdin
		app.ctx.Stdout = stdout
		app.ctx.Stderr = stderr
	}
}

// WithFS sets the filesystem used by the application.
func WithFS(fs vfs.FileSystem) Option {
	return func(app *App) {
		app.ctx.FS = fs
	}
}

// WithLogger initializes the logger used by the application.
func WithLogger(_, isStderrTTY bool) Option {
	return func(app *App) {
		lvl := &slog.LevelVar{}
		lvl.Set(slog.LevelInfo)
		logger := slog.New(
			tint.NewHandler(app.ctx.Stderr, &tint.Options{
				Level:      lvl,
				NoColor:    !isStderrTTY,
				TimeFormat: "2006-01-02 15:04:05.000",
			}),
		)
		app.logLevel = lvl
		app.ctx.Logger = logger
		slog.SetDefault(logger)
	}
}

// WithRegistry sets the registry of Go migrations.
func WithRegistry(reg *migrate.Registry) Option {
	return func(app *App) {
		app.ctx.Registry = reg
	}
}

// WithTimeSource sets the source of the current time.
func WithTimeSource(ts models.TimeSource) Option {
	return func(app *App) {
		app.ctx.TimeSource = ts
	}
}
