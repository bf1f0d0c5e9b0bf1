package archive

import (
	"errors"
	"io/fs"
	"strings"
)

// errStopIteration is a sentinel used internally to unwind fs.WalkDir when
// the caller's yield callback asked to stop early.
var errStopIteration = errors.New("archive: iteration stopped")

// walkTarFS walks fsys in lexical order, yielding every regular file under
// "info/" as a Member. It stops as soon as yield returns false, propagating
// errStopIteration so the caller can distinguish a deliberate stop from a
// real walk error.
func walkTarFS(fsys fs.FS, yield func(Member, error) bool) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(path, "info/") {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if !yield(Member{Name: path, Body: f}, nil) {
			return errStopIteration
		}
		return nil
	})
}
