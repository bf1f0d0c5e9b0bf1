package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/chanfs"
	"github.com/wuxler/chanidx/pkg/coordinator"
)

// NewIndexCommand returns an IndexCommand with default values.
func NewIndexCommand() *IndexCommand {
	return &IndexCommand{
		Common:       NewCommon(),
		WriteCurrent: true,
		SaveFSState:  true,
	}
}

// IndexCommand scans a channel's subdirectories and (re)emits its index
// documents: the subdir discovery → channel-lock → refresh/extract/emit
// pipeline (C6/C7).
type IndexCommand struct {
	*Common

	Subdirs          []string
	Pins             []string
	ChannelName      string
	BaseURL          string
	PatchScript      string
	WorkerCap        int
	SaveFSState      bool
	WriteCurrent     bool
	WriteShards      bool
	WriteRunExports  bool
	WriteSummary     bool
	WriteSyndication bool
}

func (c *IndexCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Scan a channel directory and emit its repodata documents",
		ArgsUsage: "CHANNEL_ROOT",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(ActionFuncChain(ExactArgs(1), c.before)),
		Action:    c.Run,
	}
}

func (c *IndexCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "subdir",
			Usage:       "limit indexing to these subdirs (default: discover from disk)",
			Destination: &c.Subdirs,
		},
		&cli.StringSliceFlag{
			Name:        "pin",
			Usage:       `pin a package name to allowed versions for current_repodata.json, as "name=selector[,selector...]"`,
			Destination: &c.Pins,
		},
		&cli.StringFlag{
			Name:        "channel-name",
			Usage:       "channel name recorded in channeldata.json and rss.xml (default: the channel root's base name)",
			Destination: &c.ChannelName,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "base URL recorded in emitted documents (bumps repodata_version to 2)",
			Destination: &c.BaseURL,
		},
		&cli.StringFlag{
			Name:        "patch-script",
			Usage:       "path to an executable invoked as `patch-script subdir` to generate patch_instructions.json",
			Destination: &c.PatchScript,
		},
		&cli.IntFlag{
			Name:        "worker-cap",
			Usage:       "maximum concurrent extractor workers (default: CPU count, capped at 48 on Windows)",
			Destination: &c.WorkerCap,
		},
		&cli.BoolFlag{
			Name:        "save-fs-state",
			Usage:       "refresh the observed-file table from disk before planning extraction",
			Destination: &c.SaveFSState,
			Value:       c.SaveFSState,
		},
		&cli.BoolFlag{
			Name:        "write-current-repodata",
			Usage:       "derive and write current_repodata.json",
			Destination: &c.WriteCurrent,
			Value:       c.WriteCurrent,
		},
		&cli.BoolFlag{
			Name:        "write-shards",
			Usage:       "write the sharded index variant alongside the monolithic one",
			Destination: &c.WriteShards,
		},
		&cli.BoolFlag{
			Name:        "write-run-exports",
			Usage:       "write run_exports.json",
			Destination: &c.WriteRunExports,
		},
		&cli.BoolFlag{
			Name:        "write-summary",
			Usage:       "update channeldata.json after all subdirs are indexed",
			Destination: &c.WriteSummary,
		},
		&cli.BoolFlag{
			Name:        "write-syndication",
			Usage:       "write rss.xml (implies --write-summary)",
			Destination: &c.WriteSyndication,
		},
	}
	return append(flags, c.Common.Flags()...)
}

func (c *IndexCommand) before(ctx context.Context, cmd *cli.Command) error {
	return c.Common.Init(ctx, cmd)
}

func (c *IndexCommand) Run(ctx context.Context, cmd *cli.Command) error {
	channelRoot := cmd.Args().First()

	pins, err := parsePins(c.Pins)
	if err != nil {
		return err
	}

	cfg := coordinator.NewConfig(channelRoot)
	if c.ChannelName != "" {
		cfg.ChannelName = c.ChannelName
	}
	cfg.Subdirs = c.Subdirs
	cfg.CacheDir = c.CacheDir
	cfg.SaveFSState = c.SaveFSState
	cfg.WriteCurrent = c.WriteCurrent
	cfg.WriteShards = c.WriteShards
	cfg.WriteRunExports = c.WriteRunExports
	cfg.WriteSummary = c.WriteSummary || c.WriteSyndication
	cfg.WriteSyndication = c.WriteSyndication
	cfg.BaseURL = c.BaseURL
	cfg.PatchScript = c.PatchScript
	cfg.PinsByName = pins
	if c.WorkerCap > 0 {
		cfg.WorkerCap = c.WorkerCap
	}

	fs := chanfs.NewLocal(channelRoot)
	co := coordinator.New(cfg, fs, c.Logger())
	defer co.Close() //nolint:errcheck

	results, err := co.Index(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(cmd.Writer, "%s: %d attempted, %d failed\n", res.Subdir, res.Attempted, res.Failed) //nolint:errcheck
	}
	return nil
}

// parsePins parses "name=selector[,selector...]" entries into the map
// coordinator.Config.PinsByName expects.
func parsePins(raw []string) (map[string][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	pins := make(map[string][]string, len(raw))
	for _, entry := range raw {
		name, selectors, ok := strings.Cut(entry, "=")
		if !ok || name == "" || selectors == "" {
			return nil, fmt.Errorf(`invalid --pin %q, expected "name=selector[,selector...]"`, entry)
		}
		pins[name] = append(pins[name], strings.Split(selectors, ",")...)
	}
	return pins, nil
}
