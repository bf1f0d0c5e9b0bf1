// Package coordinator implements the per-channel orchestration (C6):
// subdirectory discovery, channel-lock acquisition, and the per-subdir
// refresh → plan → extract → emit pipeline.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wuxler/chanidx/pkg/archive"
	"github.com/wuxler/chanidx/pkg/cachedb"
	"github.com/wuxler/chanidx/pkg/chanfs"
	"github.com/wuxler/chanidx/pkg/channeldata"
	"github.com/wuxler/chanidx/pkg/extractor"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/repodata"
	"github.com/wuxler/chanidx/pkg/shards"
	"github.com/wuxler/chanidx/pkg/xlog"
)

// Coordinator drives Index() over a channel rooted at Config.ChannelRoot.
type Coordinator struct {
	cfg    Config
	fs     chanfs.FS
	logger *xlog.Logger

	stores map[string]*cachedb.Store
}

// New returns a Coordinator for cfg, reading package bytes through fs and
// logging through logger.
func New(cfg Config, fs chanfs.FS, logger *xlog.Logger) *Coordinator {
	return &Coordinator{cfg: cfg, fs: fs, logger: logger, stores: map[string]*cachedb.Store{}}
}

// SubdirResult is the per-subdir outcome Index returns for each processed
// subdirectory.
type SubdirResult struct {
	Subdir    string
	Attempted int
	Failed    int
}

// Index performs subdir discovery, channel-lock acquisition, and the
// per-subdir refresh → plan → extract → emit pipeline, in that order.
func (c *Coordinator) Index(ctx context.Context) ([]SubdirResult, error) {
	entries, err := c.fs.ListDir(ctx, ".")
	if err != nil {
		return nil, fmt.Errorf("listing channel root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	subdirs := DiscoverSubdirs(c.cfg.Subdirs, names)

	lock, err := acquireChannelLock(ctx, c.cfg.ChannelRoot, c.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer lock.Release() //nolint:errcheck

	results := make([]SubdirResult, 0, len(subdirs))
	for _, subdir := range subdirs {
		res, err := c.processSubdir(ctx, subdir)
		if err != nil {
			return results, fmt.Errorf("processing subdir %q: %w", subdir, err)
		}
		results = append(results, res)
	}

	if c.cfg.WriteSummary {
		if err := c.updateChannelSummary(ctx, subdirs); err != nil {
			return results, fmt.Errorf("updating channel summary: %w", err)
		}
	}

	return results, nil
}

// updateChannelSummary implements update_channeldata(): it re-reads every
// subdir's already-emitted repodata.json rather than the in-memory
// documents processSubdir just built, so it can also run standalone
// against a channel indexed by an earlier process.
func (c *Coordinator) updateChannelSummary(ctx context.Context, subdirs []string) error {
	doc, err := channeldata.Build(ctx, channeldata.Options{
		ChannelRoot: c.cfg.ChannelRoot,
		Subdirs:     subdirs,
		Stores:      c.storeFor,
	})
	if err != nil {
		return err
	}
	if err := channeldata.Write(c.cfg.ChannelRoot, doc); err != nil {
		return err
	}

	if c.cfg.WriteSyndication {
		feed, err := channeldata.BuildFeed(c.cfg.ChannelName, doc, time.Now())
		if err != nil {
			return err
		}
		if err := channeldata.WriteFeed(c.cfg.ChannelRoot, feed); err != nil {
			return err
		}
	}

	body, err := channeldata.RenderChannelIndex(c.cfg.ChannelRoot, c.cfg.ChannelName, doc.Subdirs)
	if err != nil {
		return err
	}
	return channeldata.WriteIndexHTML(c.cfg.ChannelRoot, body)
}

func (c *Coordinator) storeFor(ctx context.Context, subdir string) (*cachedb.Store, error) {
	if s, ok := c.stores[subdir]; ok {
		return s, nil
	}
	dbPath := path.Join(c.cfg.CacheDir, subdir+".cache.db")
	s, err := cachedb.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	c.stores[subdir] = s
	return s, nil
}

func (c *Coordinator) processSubdir(ctx context.Context, subdir string) (SubdirResult, error) {
	store, err := c.storeFor(ctx, subdir)
	if err != nil {
		return SubdirResult{}, err
	}

	if c.cfg.SaveFSState {
		if err := c.refresh(ctx, store, subdir); err != nil {
			return SubdirResult{}, fmt.Errorf("refreshing: %w", err)
		}
	}

	changed, err := changedEntries(ctx, store, subdir)
	if err != nil {
		return SubdirResult{}, fmt.Errorf("planning: %w", err)
	}

	res := SubdirResult{Subdir: subdir, Attempted: len(changed)}
	if err := c.extract(ctx, subdir, changed, &res); err != nil {
		return res, fmt.Errorf("extracting: %w", err)
	}

	fromPackages, patched, err := repodata.EmitSubdir(ctx, c.cfg.ChannelRoot, store, repodata.EmitOptions{
		Subdir:          subdir,
		BaseURL:         c.cfg.BaseURL,
		WriteCurrent:    c.cfg.WriteCurrent,
		Pins:            c.cfg.PinsByName,
		PatchScript:     c.cfg.PatchScript,
		WriteRunExports: c.cfg.WriteRunExports,
	})
	if err != nil {
		return res, fmt.Errorf("emitting: %w", err)
	}

	if c.cfg.WriteShards {
		if err := shards.WriteSubdir(ctx, c.cfg.ChannelRoot, subdir, fromPackages, patched); err != nil {
			return res, fmt.Errorf("writing shards: %w", err)
		}
	}

	if err := c.writeSubdirIndex(subdir, patched); err != nil {
		return res, fmt.Errorf("writing subdir index.html: %w", err)
	}

	return res, nil
}

func (c *Coordinator) writeSubdirIndex(subdir string, doc repodata.Document) error {
	body, err := channeldata.RenderSubdirIndex(c.cfg.ChannelRoot, subdir, doc.Pkgs, doc.PkgsC)
	if err != nil {
		return err
	}
	return channeldata.WriteIndexHTML(filepath.Join(c.cfg.ChannelRoot, subdir), body)
}

func (c *Coordinator) refresh(ctx context.Context, store *cachedb.Store, subdir string) error {
	entries, err := c.fs.ListDir(ctx, subdir)
	if errors.Is(err, os.ErrNotExist) {
		// A subdir with no directory on disk (such as the always-included
		// noarch) has no packages; it is still emitted, as an empty index.
		entries, err = nil, nil
	}
	if err != nil {
		return err
	}
	rows := make([]model.FileStat, 0, len(entries))
	for _, e := range entries {
		if archive.DetectDialect(e.Name) == archive.DialectUnknown {
			continue
		}
		rows = append(rows, model.FileStat{
			Stage: model.StageObserved,
			Key:   c.fs.Join(subdir, e.Name),
			Mtime: e.Mtime,
			Size:  e.Size,
		})
	}
	return store.RefreshObserved(ctx, subdir+"/", rows)
}

func changedEntries(ctx context.Context, store *cachedb.Store, subdir string) ([]model.FileStat, error) {
	var entries []model.FileStat
	var firstErr error
	store.Changed(ctx, subdir+"/")(func(fs model.FileStat, err error) bool {
		if err != nil {
			firstErr = err
			return false
		}
		entries = append(entries, fs)
		return true
	})
	return entries, firstErr
}

// extract runs one extractor.Extract call per changed entry, capped at
// WorkerCap concurrent goroutines. Each goroutine opens its own store
// handle rather than sharing the subdir's cached one, so handles stay
// effectively thread-local.
func (c *Coordinator) extract(ctx context.Context, subdir string, changed []model.FileStat, res *SubdirResult) error {
	dbPath := path.Join(c.cfg.CacheDir, subdir+".cache.db")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.WorkerCap)

	failures := make(chan struct{}, len(changed))
	for _, entry := range changed {
		entry := entry
		g.Go(func() error {
			store, err := cachedb.Open(gctx, dbPath)
			if err != nil {
				return fmt.Errorf("opening worker store: %w", err)
			}
			defer store.Close() //nolint:errcheck

			result := extractor.Extract(gctx, c.logger, c.fs, store, subdir, entry)
			if result.Err != nil {
				failures <- struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(failures)
	for range failures {
		res.Failed++
	}
	return nil
}

// Close releases every lazily-opened store handle.
func (c *Coordinator) Close() error {
	var firstErr error
	for _, s := range c.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
