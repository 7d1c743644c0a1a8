package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"

	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

// Config represents the application configuration, backed by a filesystem for
// persistence. Files with a .yaml or .yml extension are read as YAML, all
// others as JSON.
type Config struct {
	Database   Database
	History    History
	Migrations Migrations
	Create     Create
	// Compact suppresses the output of individual schema commands.
	Compact sql.Null[bool]

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Clone returns a copy of the configuration that can be changed without
// affecting c.
func (c *Config) Clone() *Config {
	cc := *c
	cc.Migrations.Paths = slices.Clone(c.Migrations.Paths)
	cc.Migrations.Namespaces = slices.Clone(c.Migrations.Namespaces)
	return &cc
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	data, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	if c.isYAML() {
		err = yaml.Unmarshal(data, c)
	} else {
		// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
		if len(data) == 0 {
			data = []byte("{}")
		}
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to the filesystem.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if c.isYAML() {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

func (c *Config) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(c.path))
	return ext == ".yaml" || ext == ".yml"
}

// Locations returns the migration locations used for discovery.
func (c *Config) Locations() migrate.Locations {
	locs := migrate.Locations{Paths: append([]string(nil), c.Migrations.Paths...)}
	for _, ns := range c.Migrations.Namespaces {
		locs.Namespaces = append(locs.Namespaces, migrate.Namespace{Name: ns.Name, Path: ns.Path})
	}
	return locs
}

// NamespacePath returns the directory mapped to the namespace.
func (c *Config) NamespacePath(ns string) (string, bool) {
	ns = strings.Trim(ns, `\`)
	for _, n := range c.Migrations.Namespaces {
		if strings.Trim(n.Name, `\`) == ns {
			return n.Path, true
		}
	}
	return "", false
}

// Database defines the database connection options.
type Database struct {
	// Driver is one of sqlite, postgres or mysql, or one of their aliases.
	Driver sql.Null[string]
	DSN    sql.Null[string]
	// TablePrefix replaces the % in {{%name}} table names.
	TablePrefix sql.Null[string]
}

// History defines options of the migration history table.
type History struct {
	Table sql.Null[string]
	// MaxNameLength is the size of the name column. If unset, it's read from
	// the existing table.
	MaxNameLength sql.Null[int]
}

// Migrations defines where migrations are discovered.
type Migrations struct {
	Paths      []string
	Namespaces []Namespace
}

// Namespace maps a migration namespace to a directory.
type Namespace struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Create defines options of generated migrations.
type Create struct {
	Path           sql.Null[string]
	Namespace      sql.Null[string]
	Package        sql.Null[string]
	UseTablePrefix sql.Null[bool]
	TemplatesDir   sql.Null[string]
}

type dbCfgWrapper struct {
	Driver      string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN         string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	TablePrefix string `json:"table_prefix,omitempty" yaml:"table_prefix,omitempty"`
}
type historyCfgWrapper struct {
	Table         string `json:"table,omitempty" yaml:"table,omitempty"`
	MaxNameLength int    `json:"max_name_length,omitempty" yaml:"max_name_length,omitempty"`
}
type createCfgWrapper struct {
	Path           string `json:"path,omitempty" yaml:"path,omitempty"`
	Namespace      string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Package        string `json:"package,omitempty" yaml:"package,omitempty"`
	UseTablePrefix *bool  `json:"use_table_prefix,omitempty" yaml:"use_table_prefix,omitempty"`
	TemplatesDir   string `json:"templates_dir,omitempty" yaml:"templates_dir,omitempty"`
}

type migrationsWrapper struct {
	Paths      []string    `json:"paths,omitempty" yaml:"paths,omitempty"`
	Namespaces []Namespace `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // This is fine.
	return json.Marshal(c.wrap())
}

// MarshalYAML implements the yaml.Marshaler interface.
func (c Config) MarshalYAML() (any, error) {
	return c.wrap(), nil
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w wireConfig
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}
	return c.unwrap(w)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var w wireConfig
	if err := value.Decode(&w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}
	return c.unwrap(w)
}

// wireConfig is the serialized form of Config.
type wireConfig struct {
	Database   dbCfgWrapper      `json:"database" yaml:"database,omitempty"`
	History    historyCfgWrapper `json:"history" yaml:"history,omitempty"`
	Migrations migrationsWrapper `json:"migrations" yaml:"migrations,omitempty"`
	Create     createCfgWrapper  `json:"create" yaml:"create,omitempty"`
	Compact    *bool             `json:"compact,omitempty" yaml:"compact,omitempty"`
}

func (c Config) wrap() wireConfig {
	w := wireConfig{
		Migrations: migrationsWrapper{
			Paths:      c.Migrations.Paths,
			Namespaces: c.Migrations.Namespaces,
		},
	}

	w.Database.Driver = c.Database.Driver.V
	w.Database.DSN = c.Database.DSN.V
	w.Database.TablePrefix = c.Database.TablePrefix.V

	w.History.Table = c.History.Table.V
	w.History.MaxNameLength = c.History.MaxNameLength.V

	w.Create.Path = c.Create.Path.V
	w.Create.Namespace = c.Create.Namespace.V
	w.Create.Package = c.Create.Package.V
	w.Create.TemplatesDir = c.Create.TemplatesDir.V
	if c.Create.UseTablePrefix.Valid {
		w.Create.UseTablePrefix = &c.Create.UseTablePrefix.V
	}

	if c.Compact.Valid {
		w.Compact = &c.Compact.V
	}

	return w
}

func (c *Config) unwrap(w wireConfig) error {
	if w.Database.Driver != "" {
		if _, err := schema.DialectFor(w.Database.Driver); err != nil {
			return err
		}
		c.Database.Driver = valid(w.Database.Driver)
	}
	if w.Database.DSN != "" {
		c.Database.DSN = valid(w.Database.DSN)
	}
	if w.Database.TablePrefix != "" {
		c.Database.TablePrefix = valid(w.Database.TablePrefix)
	}

	if w.History.Table != "" {
		c.History.Table = valid(w.History.Table)
	}
	if w.History.MaxNameLength < 0 {
		return fmt.Errorf("invalid history max_name_length %d", w.History.MaxNameLength)
	}
	if w.History.MaxNameLength > 0 {
		c.History.MaxNameLength = valid(w.History.MaxNameLength)
	}

	c.Migrations = Migrations{
		Paths:      w.Migrations.Paths,
		Namespaces: w.Migrations.Namespaces,
	}
	for _, ns := range c.Migrations.Namespaces {
		if ns.Name == "" || ns.Path == "" {
			return errors.New("migration namespaces require a name and a path")
		}
	}

	if w.Create.Path != "" {
		c.Create.Path = valid(w.Create.Path)
	}
	if w.Create.Namespace != "" {
		c.Create.Namespace = valid(w.Create.Namespace)
	}
	if w.Create.Package != "" {
		c.Create.Package = valid(w.Create.Package)
	}
	if w.Create.TemplatesDir != "" {
		c.Create.TemplatesDir = valid(w.Create.TemplatesDir)
	}
	if w.Create.UseTablePrefix != nil {
		c.Create.UseTablePrefix = valid(*w.Create.UseTablePrefix)
	}

	if w.Compact != nil {
		c.Compact = valid(*w.Compact)
	}

	return nil
}

func valid[T any](v T) sql.Null[T] {
	return sql.Null[T]{V: v, Valid: true}
}

// SetDefaults sets default configuration values if they weren't set already.
func (c *Config) SetDefaults() {
	if !c.Database.Driver.Valid {
		c.Database.Driver = valid("sqlite")
	}
	if !c.History.Table.Valid {
		c.History.Table = valid("{{%migration}}")
	}
	if !c.Create.UseTablePrefix.Valid {
		c.Create.UseTablePrefix = valid(false)
	}
	if !c.Compact.Valid {
		c.Compact = valid(false)
	}
}
