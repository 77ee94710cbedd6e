package idxstore

import (
	"strings"
	"time"

	"github.com/notewik/noteindex/internal/idxparser"
	"github.com/notewik/noteindex/internal/index"
)

// MemoryLayout is an in-memory index.StorageLayout for tests: pages
// are registered explicitly rather than discovered by walking a real
// directory, mirroring the teacher's in-memory test doubles style
// (internal/database/database_test.go's newTestDB helper).
type MemoryLayout struct {
	files   map[string][]byte // path -> content; presence means the page has content
	folders map[string]bool   // path -> true if a child container exists

	// fileNodes/folderNodes cache the memoryNode returned for a path so
	// repeated MapPage calls against an unchanged path see the same
	// mtime. A path's node is evicted only when Put/Remove actually
	// changes that path, or when PutFile adds a new entry directly under
	// a folder (that folder's node is evicted too), so the clock only
	// ticks on a real change. The root path "" is always a folder.
	fileNodes   map[string]*memoryNode
	folderNodes map[string]*memoryNode
}

// NewMemoryLayout returns an empty layout.
func NewMemoryLayout() *MemoryLayout {
	return &MemoryLayout{
		files:       make(map[string][]byte),
		folders:     make(map[string]bool),
		fileNodes:   make(map[string]*memoryNode),
		folderNodes: make(map[string]*memoryNode),
	}
}

// PutFile registers path as having content, creating any implied
// parent folders so ListChildren/MapPage see a consistent tree.
func (l *MemoryLayout) PutFile(path string, content []byte) {
	parts := strings.Split(path, ":")
	if _, ok := l.files[path]; !ok {
		delete(l.folderNodes, strings.Join(parts[:len(parts)-1], ":"))
	}
	l.files[path] = content
	delete(l.fileNodes, path)
	for i := 1; i < len(parts); i++ {
		folder := strings.Join(parts[:i], ":")
		if !l.folders[folder] {
			l.folders[folder] = true
			delete(l.folderNodes, folder)
			delete(l.folderNodes, strings.Join(parts[:i-1], ":"))
		}
	}
}

// PutFolder registers path as having a child container without
// content of its own.
func (l *MemoryLayout) PutFolder(path string) {
	l.folders[path] = true
	delete(l.folderNodes, path)
}

// RemoveFile deletes path's content, leaving any folder entry intact.
func (l *MemoryLayout) RemoveFile(path string) {
	delete(l.files, path)
	delete(l.fileNodes, path)
}

// RemoveFolder deletes path's folder entry.
func (l *MemoryLayout) RemoveFolder(path string) {
	delete(l.folders, path)
	delete(l.folderNodes, path)
}

func (l *MemoryLayout) ListChildren(path string) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	prefix := ""
	if path != "" {
		prefix = path + ":"
	}

	collect := func(key string) {
		if !strings.HasPrefix(key, prefix) {
			return
		}
		rest := key[len(prefix):]
		if rest == "" || strings.Contains(rest, ":") {
			return
		}
		if _, ok := seen[rest]; !ok {
			seen[rest] = struct{}{}
			names = append(names, rest)
		}
	}
	for k := range l.files {
		collect(k)
	}
	for k := range l.folders {
		collect(k)
	}
	return names, nil
}

func (l *MemoryLayout) MapPage(path string) (index.StoreNode, index.StoreNode, error) {
	content, hasFile := l.files[path]
	_, hasFolder := l.folders[path]
	if path == "" {
		hasFolder = true
	}

	file, ok := l.fileNodes[path]
	if !ok {
		if hasFile {
			file = &memoryNode{exists: true, content: content}
		} else {
			file = &memoryNode{exists: false}
		}
		l.fileNodes[path] = file
	}

	folder, ok := l.folderNodes[path]
	if !ok {
		if hasFolder {
			folder = &memoryNode{exists: true}
		} else {
			folder = &memoryNode{exists: false}
		}
		l.folderNodes[path] = folder
	}

	return file, folder, nil
}

func (l *MemoryLayout) GetFormat(file index.StoreNode) (index.Parser, error) {
	return idxparser.New(), nil
}

// memoryNode is a StoreNode with a fixed, test-controlled mtime based
// on a monotonically increasing counter so etag comparisons behave
// predictably without wall-clock flakiness.
type memoryNode struct {
	exists  bool
	content []byte
	mtime   time.Time
}

var memoryClock time.Time = time.Unix(1700000000, 0)

func nextMemoryTick() time.Time {
	memoryClock = memoryClock.Add(time.Second)
	return memoryClock
}

func (n *memoryNode) Exists() bool { return n.exists }

func (n *memoryNode) MTime() (time.Time, error) {
	if n.mtime.IsZero() {
		n.mtime = nextMemoryTick()
	}
	return n.mtime, nil
}

func (n *memoryNode) CTime() (time.Time, error) { return n.MTime() }

func (n *memoryNode) Read() ([]byte, error) { return n.content, nil }
