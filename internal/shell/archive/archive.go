// Package archive packs a local working tree into a gzip-compressed tar stream
// for file-transfer deployments.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned when an exclude glob does not parse.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// alwaysExcluded never ships to a server; the checkout metadata stays local.
var alwaysExcluded = []string{".git", ".git/**"}

// Stats describes what was written to an archive.
type Stats struct {
	Files int
	Dirs  int
	Bytes int64 // Uncompressed file content
}

// Excluder matches slash-separated paths relative to the archive root.
type Excluder struct {
	patterns []string
}

// NewExcluder validates patterns and returns an Excluder that also drops .git.
func NewExcluder(patterns []string) (*Excluder, error) {
	all := append(append([]string{}, alwaysExcluded...), patterns...)
	for _, p := range all {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return &Excluder{patterns: all}, nil
}

// Match reports whether rel is excluded.
func (e *Excluder) Match(rel string) bool {
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Write packs root into w. Paths in the archive are relative to root.
// Excluded directories are not descended into.
func Write(w io.Writer, root string, exclude []string) (Stats, error) {
	var stats Stats

	excluder, err := NewExcluder(exclude)
	if err != nil {
		return stats, err
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if excluder.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return addEntry(tw, path, rel, info, &stats)
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return stats, fmt.Errorf("pack %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return stats, fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("close gzip: %w", err)
	}
	return stats, nil
}

func addEntry(tw *tar.Writer, path, rel string, info fs.FileInfo, stats *Stats) error {
	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		link = target
	} else if !info.Mode().IsRegular() && !info.IsDir() {
		// Sockets, devices and pipes have no place in an application tree.
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = rel
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uname, hdr.Gname = "", ""
	hdr.Uid, hdr.Gid = 0, 0

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	switch {
	case info.IsDir():
		stats.Dirs++
		return nil
	case link != "":
		stats.Files++
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(tw, f)
	if err != nil {
		return err
	}
	stats.Files++
	stats.Bytes += n
	return nil
}
