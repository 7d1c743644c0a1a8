package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/nrednav/cuid2"

	"go.hackfix.me/dbmigrate/app/config"
	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/cli"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/models"
)

// App is the application.
type App struct {
	name string
	ctx  *actx.Context
	cli  *cli.CLI
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
	// logger is the logger before run-specific attributes are added.
	logger *slog.Logger
	// cfg is the configuration set with WithConfig. Every run works on a copy
	// of it, so that CLI flags don't persist between runs.
	cfg *config.Config
	// cfgSet is true if the configuration was set with WithConfig, in which case
	// it's not loaded from the filesystem.
	cfgSet bool
	// ownDB is false if the database was set with WithDB, in which case it's not
	// closed by the app.
	ownDB bool
}

// New initializes a new application.
func New(name, configFilePath string, opts ...Option) (*App, error) {
	version, err := actx.GetVersion()
	if err != nil {
		return nil, err
	}

	defaultCtx := &actx.Context{
		Ctx:        context.Background(),
		FS:         memoryfs.New(),
		Logger:     slog.Default(),
		TimeSource: models.TimeSourceFunc(time.Now),
		Registry:   migrate.DefaultRegistry,
		Version:    version,
	}
	app := &App{name: name, ctx: defaultCtx, ownDB: true}

	for _, opt := range opts {
		opt(app)
	}
	app.logger = app.ctx.Logger

	ver := fmt.Sprintf("%s %s", app.name, app.ctx.Version.String())
	app.cli, err = cli.New(app.ctx, configFilePath, ver)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run initializes the application environment and starts execution of the
// application.
func (app *App) Run(args []string) (err error) {
	if err = app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
		slog.SetLogLoggerLevel(app.cli.Log.Level)
	}
	app.ctx.Logger = app.logger.With("run_id", cuid2.Generate())

	if app.cfgSet {
		app.ctx.Config = app.cfg.Clone()
	} else {
		app.ctx.Config = config.NewConfig(app.ctx.FS, app.cli.ConfigFile)
		if err = app.ctx.Config.Load(); err != nil {
			return err
		}
	}
	if err = app.cli.ApplyFlags(app.ctx.Config); err != nil {
		return err
	}
	app.ctx.Config.SetDefaults()

	defer func() {
		if !app.ownDB || app.ctx.DB == nil {
			return
		}
		if cerr := app.ctx.DB.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed closing database: %w", cerr)
		}
		app.ctx.DB = nil
	}()

	app.ctx.Logger.Debug("running command", "command", app.cli.Command())

	return app.cli.Execute(app.ctx)
}
