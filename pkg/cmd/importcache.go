package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cachedb"
)

// NewImportCacheCommand returns an ImportCacheCommand with default values.
func NewImportCacheCommand() *ImportCacheCommand {
	return &ImportCacheCommand{
		Common: NewCommon(),
	}
}

// ImportCacheCommand bulk-loads one or more subdirectories' legacy
// filesystem caches (each a "<subdir>/.cache" directory) into this tool's
// cachedb stores, as a one-shot transition from an older cache layout. It
// does not scan or extract packages; the next "index" run still does that
// for anything ImportCacheCommand did not cover.
type ImportCacheCommand struct {
	*Common

	Subdirs []string
}

func (c *ImportCacheCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "import-cache",
		Usage:     "Import a legacy filesystem cache into this tool's cache databases",
		ArgsUsage: "CHANNEL_ROOT",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(ActionFuncChain(ExactArgs(1), c.before)),
		Action:    c.Run,
	}
}

func (c *ImportCacheCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "subdir",
			Usage:       "limit the import to these subdirs (default: every subdir with a .cache directory)",
			Destination: &c.Subdirs,
		},
	}
	return append(flags, c.Common.Flags()...)
}

func (c *ImportCacheCommand) before(ctx context.Context, cmd *cli.Command) error {
	return c.Common.Init(ctx, cmd)
}

func (c *ImportCacheCommand) Run(ctx context.Context, cmd *cli.Command) error {
	channelRoot := cmd.Args().First()

	subdirs := c.Subdirs
	if len(subdirs) == 0 {
		entries, err := os.ReadDir(channelRoot)
		if err != nil {
			return fmt.Errorf("listing channel root: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(channelRoot, e.Name(), ".cache")); err == nil {
				subdirs = append(subdirs, e.Name())
			}
		}
	}

	for _, subdir := range subdirs {
		cacheDir := filepath.Join(channelRoot, subdir, ".cache")
		if _, err := os.Stat(cacheDir); err != nil {
			fmt.Fprintf(cmd.Writer, "%s: no legacy cache directory, skipping\n", subdir) //nolint:errcheck
			continue
		}

		store, err := cachedb.Open(ctx, filepath.Join(c.CacheDir, subdir+".cache.db"))
		if err != nil {
			return fmt.Errorf("opening cache store for %q: %w", subdir, err)
		}
		n, err := store.ImportLegacyCache(ctx, subdir, cacheDir)
		closeErr := store.Close()
		if err != nil {
			return fmt.Errorf("importing legacy cache for %q: %w", subdir, err)
		}
		if closeErr != nil {
			return fmt.Errorf("closing cache store for %q: %w", subdir, closeErr)
		}
		fmt.Fprintf(cmd.Writer, "%s: imported %d record(s)\n", subdir, n) //nolint:errcheck
	}

	if len(subdirs) == 0 {
		fmt.Fprintf(cmd.Writer, "no legacy cache directories found under %s\n", channelRoot) //nolint:errcheck
	}
	return nil
}
