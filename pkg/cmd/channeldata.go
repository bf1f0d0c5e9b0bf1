package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/channeldata"
	"github.com/wuxler/chanidx/pkg/coordinator"
)

// NewChannelDataCommand returns a ChannelDataCommand with default values.
func NewChannelDataCommand() *ChannelDataCommand {
	return &ChannelDataCommand{
		Common: NewCommon(),
	}
}

// ChannelDataCommand rebuilds channeldata.json (and optionally rss.xml and
// the channel-root index.html) from a channel's already-emitted
// repodata.json documents, without re-scanning any subdir's packages. This
// is the standalone entry point for update_channeldata(), usable against a
// channel indexed by an earlier, separate run of the "index" command.
type ChannelDataCommand struct {
	*Common

	Subdirs          []string
	ChannelName      string
	WriteSyndication bool
	WriteHTML        bool
}

func (c *ChannelDataCommand) ToCLI() *cli.Command {
	return &cli.Command{
		Name:      "channeldata",
		Usage:     "Rebuild channeldata.json from already-indexed subdirs",
		ArgsUsage: "CHANNEL_ROOT",
		Flags:     c.Flags(),
		Before:    cli.BeforeFunc(ActionFuncChain(ExactArgs(1), c.before)),
		Action:    c.Run,
	}
}

func (c *ChannelDataCommand) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "subdir",
			Usage:       "limit to these subdirs (default: discover from disk)",
			Destination: &c.Subdirs,
		},
		&cli.StringFlag{
			Name:        "channel-name",
			Usage:       "channel name recorded in channeldata.json and rss.xml (default: the channel root's base name)",
			Destination: &c.ChannelName,
		},
		&cli.BoolFlag{
			Name:        "write-syndication",
			Usage:       "also (re)write rss.xml",
			Destination: &c.WriteSyndication,
		},
		&cli.BoolFlag{
			Name:        "write-html",
			Usage:       "also (re)write the channel-root index.html",
			Destination: &c.WriteHTML,
			Value:       true,
		},
	}
	return append(flags, c.Common.Flags()...)
}

func (c *ChannelDataCommand) before(ctx context.Context, cmd *cli.Command) error {
	return c.Common.Init(ctx, cmd)
}

func (c *ChannelDataCommand) Run(ctx context.Context, cmd *cli.Command) error {
	channelRoot := cmd.Args().First()
	channelName := c.ChannelName
	if channelName == "" {
		channelName = path.Base(channelRoot)
	}

	entries, err := os.ReadDir(channelRoot)
	if err != nil {
		return fmt.Errorf("listing channel root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	subdirs := coordinator.DiscoverSubdirs(c.Subdirs, names)

	stores := map[string]*cachedb.Store{}
	defer func() {
		for _, s := range stores {
			s.Close() //nolint:errcheck
		}
	}()
	storeFor := func(ctx context.Context, subdir string) (*cachedb.Store, error) {
		if s, ok := stores[subdir]; ok {
			return s, nil
		}
		s, err := cachedb.Open(ctx, path.Join(c.CacheDir, subdir+".cache.db"))
		if err != nil {
			return nil, err
		}
		stores[subdir] = s
		return s, nil
	}

	doc, err := channeldata.Build(ctx, channeldata.Options{
		ChannelRoot: channelRoot,
		Subdirs:     subdirs,
		Stores:      storeFor,
	})
	if err != nil {
		return err
	}
	if err := channeldata.Write(channelRoot, doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Writer, "wrote channeldata.json for %d subdir(s)\n", len(doc.Subdirs)) //nolint:errcheck

	if c.WriteSyndication {
		feed, err := channeldata.BuildFeed(channelName, doc, time.Now())
		if err != nil {
			return err
		}
		if err := channeldata.WriteFeed(channelRoot, feed); err != nil {
			return err
		}
	}

	if c.WriteHTML {
		body, err := channeldata.RenderChannelIndex(channelRoot, channelName, doc.Subdirs)
		if err != nil {
			return err
		}
		if err := channeldata.WriteIndexHTML(channelRoot, body); err != nil {
			return err
		}
	}

	return nil
}
