package context

import (
	"context"
	"io"
	"log/slog"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/dbmigrate/app/config"
	"go.hackfix.me/dbmigrate/db"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/models"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx        context.Context // global context
	FS         vfs.FileSystem  // filesystem
	Env        Environment     // process environment
	Logger     *slog.Logger    // global logger
	TimeSource models.TimeSource

	Config *config.Config
	// DB is opened on first use from the configured driver and DSN, unless
	// it was set already.
	DB *db.DB
	// Registry holds the Go migrations compiled into the binary.
	Registry *migrate.Registry

	// Standard streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Metadata
	Version *VersionInfo
}
