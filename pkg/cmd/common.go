package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/util/homedir"
	"github.com/wuxler/chanidx/pkg/xlog"
)

// NewCommon returns a *Common with default values.
func NewCommon() *Common {
	return &Common{
		CacheDir: filepath.Join(homedir.MustGet(), ".cache", "chanidx"),
	}
}

// Common are options shared by every subcommand: logging verbosity and
// the default root for per-subdir cache database files.
type Common struct {
	Debug    bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	logger *xlog.Logger
}

// Flags returns the []cli.Flag related to the current options.
func (o *Common) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Aliases:     []string{"d"},
			Sources:     cli.EnvVars("CHANIDX_DEBUG"),
			Usage:       "enable debug logging",
			Destination: &o.Debug,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Sources:     cli.EnvVars("CHANIDX_CACHE_DIR"),
			Usage:       "directory holding per-subdir cache database files",
			Destination: &o.CacheDir,
			Value:       o.CacheDir,
		},
	}
}

// Init implements an ActionFunc that builds the shared logger from the
// parsed flag values.
func (o *Common) Init(_ context.Context, _ *cli.Command) error {
	cfg := xlog.NewConfig()
	if o.Debug {
		cfg.Level = slog.LevelDebug
	}
	o.logger = xlog.New(cfg)
	return nil
}

// Logger returns the shared logger built by Init.
func (o *Common) Logger() *xlog.Logger {
	return o.logger
}
