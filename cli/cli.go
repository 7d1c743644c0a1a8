package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/dbmigrate/app/config"
	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

// CLI is the command line interface of dbmigrate.
type CLI struct {
	Create  Create        `kong:"cmd,help='Create a new migration.'"`
	Up      Up            `kong:"cmd,help='Apply new migrations.'"`
	Down    Down          `kong:"cmd,help='Revert applied migrations.'"`
	Redo    Redo          `kong:"cmd,help='Revert and re-apply applied migrations.'"`
	To      To            `kong:"cmd,help='Migrate up or down to a specific version.'"`
	Mark    Mark          `kong:"cmd,help='Set the migration history to a specific version, without running migrations.'"`
	History History       `kong:"cmd,help='Show the applied migrations.'"`
	New     NewMigrations `kong:"cmd,help='Show the new migrations.'"`
	List    List          `kong:"cmd,help='List all known migrations and their status.'"`
	Fresh   Fresh         `kong:"cmd,help='Drop all tables and apply all migrations from the beginning.'"`

	Driver        string   `kong:"help='Database driver: sqlite, postgres or mysql.'"`
	DSN           string   `kong:"name='dsn',help='Database connection string.'"`
	TablePrefix   string   `kong:"help='Prefix of table names written as {{%name}}.'"`
	HistoryTable  string   `kong:"help='Name of the migration history table.'"`
	MaxNameLength int      `kong:"help='Maximum length of migration names. Read from the history table if not set.'"`
	MigrationPath []string `kong:"help='Directory of unnamespaced migrations. Can be repeated.'"`
	//nolint:lll // Long struct tags are unavoidable.
	MigrationNamespace []string `kong:"help='Namespaced migrations directory in <namespace>=<path> format. Can be repeated.'"`
	Compact            bool     `kong:"help='Only show a summary of each migration, not the individual schema commands.'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	// NOTE: I'm deliberately not using kong.ConfigFlag or its support for reading
	// values from configuration files, since I want to manage configuration
	// independently from the CLI.
	ConfigFile string           `kong:"default='${configFile}',help='Path to the configuration file.'"`
	Version    kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(appCtx *actx.Context, configFilePath, version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name("dbmigrate"),
		kong.Description("Manage database schema migrations."),
		kong.UsageOnError(),
		kong.DefaultEnvars("DBMIGRATE"),
		kong.TypeMapper(reflect.TypeOf(migrate.Target{}), &TargetMapper{timeSource: appCtx.TimeSource}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFile": configFilePath,
			"version":    version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyFlags overrides configuration values with the ones set via the CLI.
func (c *CLI) ApplyFlags(cfg *config.Config) error {
	if c.Driver != "" {
		if _, err := schema.DialectFor(c.Driver); err != nil {
			return aerrors.NewValidation(err)
		}
		cfg.Database.Driver = sql.Null[string]{V: c.Driver, Valid: true}
	}
	if c.DSN != "" {
		cfg.Database.DSN = sql.Null[string]{V: c.DSN, Valid: true}
	}
	if c.TablePrefix != "" {
		cfg.Database.TablePrefix = sql.Null[string]{V: c.TablePrefix, Valid: true}
	}
	if c.HistoryTable != "" {
		cfg.History.Table = sql.Null[string]{V: c.HistoryTable, Valid: true}
	}
	if c.MaxNameLength < 0 {
		return aerrors.NewValidation(fmt.Errorf("invalid max name length %d", c.MaxNameLength))
	}
	if c.MaxNameLength > 0 {
		cfg.History.MaxNameLength = sql.Null[int]{V: c.MaxNameLength, Valid: true}
	}
	if len(c.MigrationPath) > 0 {
		cfg.Migrations.Paths = c.MigrationPath
	}
	if len(c.MigrationNamespace) > 0 {
		namespaces := make([]config.Namespace, 0, len(c.MigrationNamespace))
		for _, ns := range c.MigrationNamespace {
			name, path, ok := strings.Cut(ns, "=")
			if !ok || name == "" || path == "" {
				return aerrors.NewValidation(fmt.Errorf(
					"invalid migration namespace '%s', expected <namespace>=<path>", ns))
			}
			namespaces = append(namespaces, config.Namespace{Name: name, Path: path})
		}
		cfg.Migrations.Namespaces = namespaces
	}
	if c.Compact {
		cfg.Compact = sql.Null[bool]{V: true, Valid: true}
	}

	return nil
}
