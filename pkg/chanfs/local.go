package chanfs

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/wuxler/chanidx/pkg/errdefs"
)

// local is the default FS implementation, wrapping the host filesystem
// directly for the hot path.
type local struct {
	root string
}

// NewLocal returns an FS rooted at root on the host filesystem.
func NewLocal(root string) FS {
	return &local{root: root}
}

func (l *local) resolve(p string) string {
	return joinSlash(l.root, p)
}

func (l *local) Open(_ context.Context, p string) (Source, error) {
	f, err := os.Open(l.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", p, err)
	}
	return f, nil
}

func (l *local) Stat(_ context.Context, p string) (Info, error) {
	st, err := os.Stat(l.resolve(p))
	if err != nil {
		return Info{}, fmt.Errorf("stat %q: %w", p, err)
	}
	return Info{Size: st.Size(), Mtime: st.ModTime()}, nil
}

func (l *local) ListDir(_ context.Context, p string) ([]Entry, error) {
	dirents, err := os.ReadDir(l.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", p, err)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		info, err := d.Info()
		if err != nil {
			return nil, errdefs.NewE(errdefs.ErrSystem, err)
		}
		entries = append(entries, Entry{Name: d.Name(), Size: info.Size(), Mtime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (l *local) Join(elems ...string) string { return joinSlash(elems...) }
func (l *local) Base(p string) string        { return baseSlash(p) }
