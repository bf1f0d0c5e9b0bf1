package channeldata

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wuxler/chanidx/pkg/digest"
	"github.com/wuxler/chanidx/pkg/model"
	"github.com/wuxler/chanidx/pkg/util/xos"
)

// FileInfo is one row in a directory listing: a package archive or a
// companion document (repodata.json, patch_instructions.json, ...).
type FileInfo struct {
	Name   string
	Size   int64
	Mtime  time.Time
	SHA256 string
	MD5    string
	IsDir  bool
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead><tr><th>Name</th><th>Size</th><th>Last modified</th><th>SHA256</th><th>MD5</th></tr></thead>
<tbody>
{{range .Files}}<tr>
<td>{{if .IsDir}}<a href="{{.Name}}/">{{.Name}}/</a>{{else}}<a href="{{.Name}}">{{.Name}}</a>{{end}}</td>
<td>{{.Size}}</td>
<td>{{.Mtime.UTC.Format "2006-01-02T15:04:05Z"}}</td>
<td>{{.SHA256}}</td>
<td>{{.MD5}}</td>
</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

type indexPage struct {
	Title string
	Files []FileInfo
}

// companionFiles are the emitted documents listed alongside package
// archives in a subdir's index.html, per spec.md §4.7.7.
var companionFiles = []string{
	"repodata.json", "repodata.json.bz2", "repodata.json.zst",
	"repodata_from_packages.json", "repodata_from_packages.json.bz2", "repodata_from_packages.json.zst",
	"current_repodata.json",
	"patch_instructions.json",
}

// statFile computes a FileInfo for path, including its sha256/md5
// digests, or returns ok=false if path does not exist.
func statFile(path, name string) (FileInfo, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, false, nil
		}
		return FileInfo{}, false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, false, fmt.Errorf("stat %s: %w", path, err)
	}

	sums, err := digest.Compute(f, digest.SHA256, digest.MD5)
	if err != nil {
		return FileInfo{}, false, fmt.Errorf("digesting %s: %w", path, err)
	}

	return FileInfo{
		Name:   name,
		Size:   st.Size(),
		Mtime:  st.ModTime(),
		SHA256: sums[digest.SHA256],
		MD5:    sums[digest.MD5],
	}, true, nil
}

// RenderSubdirIndex lists every package in pkgs ∪ pkgsC plus the
// companion documents present on disk in {channelRoot}/{subdir}.
func RenderSubdirIndex(channelRoot, subdir string, pkgs, pkgsC map[string]model.Record) ([]byte, error) {
	dir := filepath.Join(channelRoot, subdir)

	names := make([]string, 0, len(pkgs)+len(pkgsC))
	for name := range pkgs {
		names = append(names, name)
	}
	for name := range pkgsC {
		if _, dup := pkgs[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	files := make([]FileInfo, 0, len(names)+len(companionFiles))
	for _, name := range names {
		fi, ok, err := statFile(filepath.Join(dir, name), name)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, fi)
		}
	}
	for _, name := range companionFiles {
		fi, ok, err := statFile(filepath.Join(dir, name), name)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, fi)
		}
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexPage{Title: subdir, Files: files}); err != nil {
		return nil, fmt.Errorf("rendering %s index: %w", subdir, err)
	}
	return buf.Bytes(), nil
}

// RenderChannelIndex lists every discovered subdir plus channeldata.json
// and rss.xml if present, at the channel root.
func RenderChannelIndex(channelRoot, channelName string, subdirs []string) ([]byte, error) {
	files := make([]FileInfo, 0, len(subdirs)+2)
	for _, subdir := range subdirs {
		files = append(files, FileInfo{Name: subdir, IsDir: true})
	}
	for _, name := range []string{"channeldata.json", "rss.xml"} {
		fi, ok, err := statFile(filepath.Join(channelRoot, name), name)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, fi)
		}
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexPage{Title: channelName, Files: files}); err != nil {
		return nil, fmt.Errorf("rendering channel index: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteIndexHTML writes body atomically to dir/index.html, skipping the
// write if it is unchanged.
func WriteIndexHTML(dir string, body []byte) error {
	target := filepath.Join(dir, "index.html")
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, body) {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	temper := xos.NewTemper(dir)
	f, err := temper.CreateTemp("index.html.tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for index.html: %w", err)
	}
	tmpName := f.Name()
	if _, err := io.Copy(f, bytes.NewReader(body)); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return fmt.Errorf("writing index.html: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing index.html: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into index.html: %w", err)
	}
	return nil
}
