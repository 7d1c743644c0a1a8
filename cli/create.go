package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/generator"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

// The Create command generates a new migration skeleton.
type Create struct {
	Name string `arg:"" help:"Migration name for the create command, table name for the others."`
	//nolint:lll // Long struct tags are unavoidable.
	Command string `enum:"create,table,dropTable,addColumn,dropColumn,junction" default:"create" help:"Kind of migration to generate. One of: ${enum}."`
	//nolint:lll // Long struct tags are unavoidable.
	Fields         string      `help:"Column specifications, e.g. 'title:string(12):notNull,author_id:integer:foreignKey(user)'."`
	And            string      `help:"Second table of a junction table."`
	TableComment   string      `help:"Comment of the created table."`
	UseTablePrefix bool        `help:"Write table names as {{%name}}, so that the table prefix applies."`
	Format         string      `enum:"go,sql" default:"go" help:"Migration format. One of: ${enum}."`
	Path           string      `help:"Directory to create the migration in."`
	Namespace      string      `help:"Namespace of the migration. Its directory is read from the configuration, unless --path is set."`
	Package        string      `help:"Go package name of the migration."`
	Prompt         confirmFlag `embed:""`
}

// Run the create command.
func (c *Create) Run(appCtx *actx.Context) error {
	cfg := appCtx.Config
	// A namespaced name, e.g. app\migrations\create_post, sets the namespace of
	// the migration.
	nameNS := strings.Trim(migrate.NamespaceOf(c.Name), `\`)
	req := generator.Request{
		Command:        generator.Command(c.Command),
		Name:           migrate.BaseName(c.Name),
		And:            c.And,
		Fields:         c.Fields,
		TableComment:   c.TableComment,
		UseTablePrefix: c.UseTablePrefix || cfg.Create.UseTablePrefix.V,
	}
	if err := migrate.ValidateName(c.Name); err != nil {
		return aerrors.NewValidation(err)
	}
	if err := req.Validate(); err != nil {
		return aerrors.NewValidation(err)
	}

	dir, ns, err := c.location(appCtx, nameNS)
	if err != nil {
		return err
	}

	name := migrate.GenerateName(req.BaseName(), ns, appCtx.TimeSource.Now())

	genOpts := []generator.Option{
		generator.WithTablePrefix(cfg.Database.TablePrefix.V),
		generator.WithLogger(appCtx.Logger),
	}
	if cfg.Create.TemplatesDir.Valid {
		genOpts = append(genOpts, generator.WithTemplatesDir(cfg.Create.TemplatesDir.V))
	}

	limit := migrate.DefaultNameLength
	if cfg.History.MaxNameLength.Valid {
		limit = cfg.History.MaxNameLength.V
	}
	if appCtx.DB != nil || (cfg.Database.DSN.Valid && cfg.Database.DSN.V != "") {
		m, err := newMigrator(appCtx)
		if err != nil {
			return err
		}
		if dbLimit, ok, err := m.History().NameLimit(appCtx.Ctx); err != nil {
			return err
		} else if ok {
			limit = dbLimit
		}
		builder := m.Builder()
		genOpts = append(genOpts,
			generator.WithDialect(builder.Dialect()),
			generator.WithPrimaryKeyLookup(func(ctx context.Context, table string) ([]string, error) {
				//nolint:wrapcheck // The generator logs this error.
				return builder.TablePrimaryKey(ctx, table)
			}),
		)
	} else if cfg.Database.Driver.Valid {
		d, err := schema.DialectFor(cfg.Database.Driver.V)
		if err != nil {
			return aerrors.NewValidation(err)
		}
		genOpts = append(genOpts, generator.WithDialect(d))
	}
	if len(name) > limit {
		return &migrate.NameTooLongError{Name: name, Limit: limit}
	}

	format := migrate.Format(c.Format)
	file := filepath.Join(dir, migrate.BaseName(name)+"."+string(format))
	if _, err = appCtx.FS.Stat(file); err == nil {
		return aerrors.NewWith("migration file already exists", "file", file)
	} else if !vfs.IsErrNotExist(err) {
		return aerrors.NewWithCause("failed checking migration file", err, "file", file)
	}

	ok, err := c.Prompt.confirm(appCtx, fmt.Sprintf("Create new migration '%s'?", file), true)
	if err != nil || !ok {
		return err
	}

	gen := generator.New(appCtx.FS, genOpts...)
	src, err := gen.Render(appCtx.Ctx, req, generator.Target{
		Name:    name,
		Format:  format,
		Package: c.packageName(appCtx, dir),
	})
	if err != nil {
		return aerrors.NewWithCause("failed generating migration", err, "name", name)
	}

	if err = appCtx.FS.MkdirAll(dir, 0o755); err != nil {
		return aerrors.NewWithCause("failed creating migration directory", err, "dir", dir)
	}
	if err = vfs.WriteFile(appCtx.FS, file, src, 0o644); err != nil {
		return aerrors.NewWithCause("failed writing migration file", err, "file", file)
	}

	appCtx.Logger.Debug("created migration", "name", name, "file", file)
	successColor.Fprintln(appCtx.Stdout, "New migration created successfully.")

	return nil
}

// location returns the directory and namespace of the new migration. The
// namespace of the name takes precedence over CLI options, which take precedence
// over the configuration.
func (c *Create) location(appCtx *actx.Context, nameNS string) (dir, ns string, err error) {
	cfg := appCtx.Config

	path, namespace := c.Path, c.Namespace
	if nameNS != "" {
		namespace = nameNS
	}
	if path == "" && namespace == "" {
		path, namespace = cfg.Create.Path.V, cfg.Create.Namespace.V
	}

	if path != "" {
		return path, namespace, nil
	}
	if namespace == "" {
		return "", "", &migrate.ConfigError{
			Msg: "either a create path or a create namespace must be configured",
		}
	}

	dir, ok := cfg.NamespacePath(namespace)
	if !ok {
		return "", "", &migrate.ConfigError{
			Msg: fmt.Sprintf("no directory is configured for the migration namespace '%s'", namespace),
		}
	}

	return dir, namespace, nil
}

// packageName returns the Go package of the new migration.
func (c *Create) packageName(appCtx *actx.Context, dir string) string {
	if c.Package != "" {
		return c.Package
	}
	if pkg := appCtx.Config.Create.Package; pkg.Valid && pkg.V != "" {
		return pkg.V
	}
	if pkg := sanitizePackage(filepath.Base(filepath.Clean(dir))); pkg != "" {
		return pkg
	}
	return "migrations"
}

// sanitizePackage turns a directory name into a valid package name, or returns
// an empty string if it can't.
func sanitizePackage(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if sb.Len() > 0 {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}
