package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"go.hackfix.me/dbmigrate/app"
	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
)

func main() {
	configFilePath := filepath.Join(xdg.ConfigHome, "dbmigrate", "config.json")

	a, err := app.New("dbmigrate", configFilePath,
		app.WithEnv(osEnv{}),
		app.WithFDs(
			os.Stdin,
			colorable.NewColorable(os.Stdout),
			colorable.NewColorable(os.Stderr),
		),
		app.WithFS(osfs.New()),
		app.WithLogger(
			isatty.IsTerminal(os.Stdout.Fd()),
			isatty.IsTerminal(os.Stderr.Fd()),
		),
	)
	if err != nil {
		aerrors.Log(slog.Default(), err)
		os.Exit(aerrors.ExitFailure)
	}
	if err = a.Run(os.Args[1:]); err != nil {
		aerrors.Log(slog.Default(), err)
		os.Exit(aerrors.ExitCode(err))
	}
}

type osEnv struct{}

var _ actx.Environment = &osEnv{}

func (e osEnv) Get(key string) string {
	return os.Getenv(key)
}

func (e osEnv) Set(key, val string) error {
	return os.Setenv(key, val)
}
