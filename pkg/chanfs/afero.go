package chanfs

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/afero"

	"github.com/wuxler/chanidx/pkg/util/xcache"
)

// aferoFS adapts any afero.Fs (local, in-memory, or a remote object-store
// implementation) to the FS contract, memoizing Stat results so repeated
// lookups against a remote backend during a refresh pass don't each incur
// a round trip.
type aferoFS struct {
	root  string
	fs    afero.Fs
	stats xcache.Cache[Info]
}

// NewAfero returns an FS rooted at root backed by fs. Pass
// afero.NewMemMapFs() for tests and fixtures, afero.NewOsFs() to behave
// like NewLocal, or a remote object-store afero.Fs to get a pluggable
// remote adapter without touching any caller code.
func NewAfero(root string, fs afero.Fs) FS {
	return &aferoFS{root: root, fs: fs, stats: xcache.NewMemory[Info]()}
}

func (a *aferoFS) resolve(p string) string {
	return joinSlash(a.root, p)
}

func (a *aferoFS) Open(_ context.Context, p string) (Source, error) {
	f, err := a.fs.Open(a.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", p, err)
	}
	return f, nil
}

func (a *aferoFS) Stat(ctx context.Context, p string) (Info, error) {
	key := a.resolve(p)
	if info, ok := a.stats.Get(ctx, key); ok {
		return info, nil
	}
	st, err := a.fs.Stat(key)
	if err != nil {
		return Info{}, fmt.Errorf("stat %q: %w", p, err)
	}
	info := Info{Size: st.Size(), Mtime: st.ModTime()}
	a.stats.Set(ctx, key, info)
	return info, nil
}

func (a *aferoFS) ListDir(_ context.Context, p string) ([]Entry, error) {
	dirents, err := afero.ReadDir(a.fs, a.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", p, err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		entries = append(entries, Entry{Name: d.Name(), Size: d.Size(), Mtime: d.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (a *aferoFS) Join(elems ...string) string { return joinSlash(elems...) }
func (a *aferoFS) Base(p string) string        { return baseSlash(p) }
