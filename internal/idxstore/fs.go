// Package idxstore implements the notebook storage layout consumed by
// internal/index: resolving a colon-delimited page name to its
// backing file and folder, and enumerating a page's direct children.
// Layout mirrors the teacher's filesystem-facing packages (plain
// os.Stat-based nodes, no caching) adapted to the page-name-to-path
// convention a notebook store uses: "A:B" maps to "A/B.txt" with
// sibling folder "A/B/" for any sub-pages.
package idxstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/notewik/noteindex/internal/idxparser"
	"github.com/notewik/noteindex/internal/index"
)

const pageExtension = ".txt"

// FSLayout implements index.StorageLayout against a real directory
// tree rooted at Root.
type FSLayout struct {
	Root string
}

// NewFSLayout returns a layout rooted at root. The directory is not
// created here; callers that need it to exist should os.MkdirAll it
// themselves.
func NewFSLayout(root string) *FSLayout {
	return &FSLayout{Root: root}
}

func (l *FSLayout) pathToDir(path string) string {
	if path == "" {
		return l.Root
	}
	parts := strings.Split(path, ":")
	return filepath.Join(append([]string{l.Root}, parts...)...)
}

// ListChildren returns the basenames of every ".txt" file or
// subdirectory directly under path.
func (l *FSLayout) ListChildren(path string) ([]string, error) {
	dir := l.pathToDir(path)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
			continue
		}
		if strings.HasSuffix(name, pageExtension) {
			base := strings.TrimSuffix(name, pageExtension)
			if _, ok := seen[base]; !ok {
				seen[base] = struct{}{}
				names = append(names, base)
			}
		}
	}
	return names, nil
}

// MapPage resolves path to its file ("<dir>/<basename>.txt") and
// folder ("<dir>/<basename>/") nodes. Neither existing is not an
// error here — index.Page.HasChildren and the tree indexer's etag
// comparisons are what decide whether that's meaningful.
func (l *FSLayout) MapPage(path string) (index.StoreNode, index.StoreNode, error) {
	if path == "" {
		return nil, &fsNode{l.Root}, nil
	}
	dir := l.pathToDir(parentPath(path))
	basename := basenameOf(path)
	file := &fsNode{filepath.Join(dir, basename+pageExtension)}
	folder := &fsNode{filepath.Join(dir, basename)}
	return file, folder, nil
}

// GetFormat returns the wikitext-ish parser for every file; this
// layout doesn't support per-extension dispatch beyond ".txt".
func (l *FSLayout) GetFormat(file index.StoreNode) (index.Parser, error) {
	return idxparser.New(), nil
}

func parentPath(path string) string {
	parts := strings.Split(path, ":")
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], ":")
}

func basenameOf(path string) string {
	parts := strings.Split(path, ":")
	return parts[len(parts)-1]
}

// fsNode is a StoreNode backed by a real filesystem path.
type fsNode struct {
	path string
}

func (n *fsNode) Exists() bool {
	_, err := os.Stat(n.path)
	return err == nil
}

func (n *fsNode) MTime() (time.Time, error) {
	info, err := os.Stat(n.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (n *fsNode) CTime() (time.Time, error) {
	return n.MTime()
}

func (n *fsNode) Read() ([]byte, error) {
	return os.ReadFile(n.path)
}
