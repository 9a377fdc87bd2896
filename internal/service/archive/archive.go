// Package archive validates uploaded shapefile archives and extracts their
// components into an isolated scratch directory.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// maxEntrySize caps a single decompressed entry. Shapefile components are
// small; anything larger is a zip bomb, not data.
const maxEntrySize = 1 << 30 // 1 GiB

// Extract unpacks the archive into a uniquely named directory under
// scratchRoot and locates the shapefile components. Entries are matched
// case-insensitively, at the top level or within exactly one subdirectory
// depth (real-world archives nest components inside a folder).
//
// The returned cleanup func removes the scratch directory and is non-nil on
// every path, including errors; the caller must invoke it on all exits.
func Extract(a domain.Archive, scratchRoot string) (*domain.ComponentSet, func(), error) {
	dir := filepath.Join(scratchRoot, uuid.NewString())
	cleanup := func() { _ = os.RemoveAll(dir) }

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, cleanup, fmt.Errorf("create scratch dir: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(a.Bytes), int64(len(a.Bytes)))
	if err != nil {
		return nil, cleanup, domain.ErrUnreadable("not a valid zip archive: %v", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, ok := safeEntryPath(f.Name)
		if !ok {
			continue // entry escapes the scratch dir or is nested too deep
		}
		if err := extractEntry(f, filepath.Join(dir, rel)); err != nil {
			return nil, cleanup, fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	cs, err := locateComponents(dir)
	if err != nil {
		return nil, cleanup, err
	}
	return cs, cleanup, nil
}

// safeEntryPath normalizes a zip entry name, rejecting absolute paths,
// traversal, and nesting deeper than one directory.
func safeEntryPath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(clean), "/")
	if len(parts) > 2 {
		return "", false
	}
	return filepath.FromSlash(strings.Join(parts, "/")), true
}

func extractEntry(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec // path sanitized by safeEntryPath
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, io.LimitReader(rc, maxEntrySize)); err != nil {
		return err
	}
	return nil
}

// locateComponents walks the extracted tree and resolves the component set
// for the first shapefile base name found (one shapefile per request).
func locateComponents(dir string) (*domain.ComponentSet, error) {
	byExt := map[string]map[string]string{} // base name (lower) -> ext -> path
	var bases []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		switch ext {
		case ".shp", ".shx", ".dbf", ".prj", ".cpg":
			if byExt[base] == nil {
				byExt[base] = map[string]string{}
			}
			byExt[base][ext] = path
			if ext == ".shp" {
				bases = append(bases, base)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan extracted archive: %w", err)
	}

	if len(bases) == 0 {
		return nil, domain.ErrMissingComponent("shp")
	}
	base := bases[0]
	comps := byExt[base]

	if emptyOrMissing(comps[".shp"]) {
		return nil, domain.ErrMissingComponent("shp")
	}
	if emptyOrMissing(comps[".shx"]) {
		return nil, domain.ErrMissingComponent("shx")
	}

	cs := &domain.ComponentSet{
		Shape:      comps[".shp"],
		Index:      comps[".shx"],
		Projection: comps[".prj"],
		CodePage:   comps[".cpg"],
		BaseName:   base,
	}
	if emptyOrMissing(comps[".dbf"]) {
		cs.Degraded = true
	} else {
		cs.Attributes = comps[".dbf"]
	}
	return cs, nil
}

// emptyOrMissing reports whether the path is unset, absent, or zero-length.
func emptyOrMissing(path string) bool {
	if path == "" {
		return true
	}
	info, err := os.Stat(path)
	return err != nil || info.Size() == 0
}

// Sweep removes scratch subdirectories older than maxAge. Abandoned
// extractions are not resumable, so age is the only criterion. Returns the
// number of directories removed.
func Sweep(scratchRoot string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch root: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > maxAge {
			if err := os.RemoveAll(filepath.Join(scratchRoot, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
