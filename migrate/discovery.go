package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Namespace maps a backslash-separated migration namespace to the directory
// containing its migrations.
type Namespace struct {
	Name string
	Path string
}

// Locations are the places migrations are discovered in.
type Locations struct {
	Paths      []string
	Namespaces []Namespace
}

// Empty returns true if no location is configured.
func (l Locations) Empty() bool {
	return len(l.Paths) == 0 && len(l.Namespaces) == 0
}

func (l Locations) clone() Locations {
	return Locations{Paths: slices.Clone(l.Paths), Namespaces: slices.Clone(l.Namespaces)}
}

// Format is the format a migration is written in.
type Format string

// Migration formats.
const (
	FormatGo  Format = "go"
	FormatSQL Format = "sql"
)

// Source is a discovered migration.
type Source struct {
	Name   string
	Format Format
	// Path is the file the migration was found in. It's empty for Go migrations
	// only known from the registry.
	Path string
	// Registered is true if a factory is registered under Name.
	Registered bool
}

var fileRx = regexp.MustCompile(`^(m\d{6}_\d{6}_\w+|M\d{12}\w+)\.(go|sql)$`)

// Discoverer finds migrations in the filesystem and in a Registry.
type Discoverer struct {
	fs       vfs.FileSystem
	locs     Locations
	registry *Registry
	logger   *slog.Logger
}

// NewDiscoverer returns a new Discoverer. The locations are copied.
func NewDiscoverer(fs vfs.FileSystem, locs Locations, reg *Registry, logger *slog.Logger) *Discoverer {
	if reg == nil {
		reg = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		fs: fs, locs: locs.clone(), registry: reg,
		logger: logger.With("component", "discovery"),
	}
}

// Locations returns a copy of the configured locations.
func (d *Discoverer) Locations() Locations {
	return d.locs.clone()
}

// Discover returns all migrations, sorted by timestamp and name. Directories
// that don't exist are skipped.
func (d *Discoverer) Discover(_ context.Context) ([]Source, error) {
	found := map[string]*Source{}

	for _, p := range d.locs.Paths {
		if err := d.scan(p, "", found); err != nil {
			return nil, err
		}
	}
	for _, ns := range d.locs.Namespaces {
		if err := d.scan(ns.Path, strings.Trim(ns.Name, `\`), found); err != nil {
			return nil, err
		}
	}

	for _, name := range d.registry.Names() {
		if !d.includes(name) {
			continue
		}
		if src, ok := found[name]; ok {
			if src.Format != FormatGo {
				return nil, &DuplicateIdentifierError{Name: name, Paths: []string{src.Path, "registry"}}
			}
			src.Registered = true
			continue
		}
		found[name] = &Source{Name: name, Format: FormatGo, Registered: true}
	}

	sources := make([]Source, 0, len(found))
	for _, src := range found {
		sources = append(sources, *src)
	}
	slices.SortFunc(sources, func(a, b Source) int {
		return strings.Compare(sortKey(a.Name), sortKey(b.Name))
	})

	return sources, nil
}

// Pending returns the discovered migrations that aren't in the applied
// records, oldest first.
func (d *Discoverer) Pending(ctx context.Context, applied []Record) ([]Source, error) {
	sources, err := d.Discover(ctx)
	if err != nil {
		return nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, rec := range applied {
		done[strings.Trim(rec.Name, `\`)] = struct{}{}
	}

	pending := []Source{}
	for _, src := range sources {
		if _, ok := done[src.Name]; !ok {
			pending = append(pending, src)
		}
	}

	return pending, nil
}

func (d *Discoverer) scan(dir, namespace string, found map[string]*Source) error {
	entries, err := vfs.ReadDir(d.fs, dir)
	if err != nil {
		if vfs.IsErrNotExist(err) {
			d.logger.Warn("migration directory doesn't exist; skipping", "path", dir)
			return nil
		}
		return fmt.Errorf("failed reading migration directory '%s': %w", dir, err)
	}

	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || strings.HasSuffix(fname, "_test.go") {
			continue
		}
		m := fileRx.FindStringSubmatch(fname)
		if m == nil {
			continue
		}

		name := m[1]
		if namespace != "" {
			name = namespace + `\` + name
		}
		path := filepath.Join(dir, fname)

		if prev, ok := found[name]; ok {
			if prev.Path == path {
				continue
			}
			return &DuplicateIdentifierError{Name: name, Paths: []string{prev.Path, path}}
		}
		found[name] = &Source{Name: name, Format: Format(m[2]), Path: path}
	}

	return nil
}

// includes returns true if a registered migration belongs to the configured
// locations.
func (d *Discoverer) includes(name string) bool {
	ns := NamespaceOf(name)
	if ns == "" {
		return len(d.locs.Paths) > 0
	}
	for _, n := range d.locs.Namespaces {
		if strings.Trim(n.Name, `\`) == ns {
			return true
		}
	}
	return false
}

// Resolve returns the runnable Migration of a source.
func (d *Discoverer) Resolve(src Source) (Migration, error) {
	switch src.Format {
	case FormatSQL:
		if src.Path == "" {
			return Migration{}, &NotFoundError{Name: src.Name}
		}
		return LoadSQL(d.fs, src.Path)
	case FormatGo:
		if f, ok := d.registry.Lookup(src.Name); ok {
			return f(), nil
		}
		msg := "it isn't registered"
		if src.Path != "" {
			msg = fmt.Sprintf("%s isn't registered, rebuild the binary with its package imported", src.Path)
		}
		return Migration{}, &NotFoundError{Name: src.Name, Msg: msg}
	}

	return Migration{}, &NotFoundError{Name: src.Name}
}
