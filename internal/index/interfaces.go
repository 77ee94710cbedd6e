package index

import "time"

// File is a store-backed leaf: a page's content file. Folder shares
// the same shape (exists/mtime/ctime/read) for a page's child
// container, so both are expressed as StoreNode.
type StoreNode interface {
	Exists() bool
	MTime() (time.Time, error)
	CTime() (time.Time, error)
	Read() ([]byte, error)
}

// StorageLayout is the notebook store, consulted to discover children
// and to resolve a page to backing file/folder nodes. Implementations
// live in internal/idxstore; this package only depends on the
// interface.
type StorageLayout interface {
	// ListChildren returns the basenames of the direct children of
	// path (empty string means the notebook root).
	ListChildren(path string) ([]string, error)

	// MapPage resolves path to its backing file and folder nodes.
	// Either may be nil if absent: a leaf page has a file and no
	// folder, a pure container has a folder and no file, a page with
	// sub-pages has both.
	MapPage(path string) (file StoreNode, folder StoreNode, err error)

	// GetFormat returns the parser appropriate for file's content, by
	// extension or content sniff.
	GetFormat(file StoreNode) (Parser, error)
}

// ParseTree is an opaque parse result; sub-indexers that need
// structure (links, tags) type-assert to the concrete tree their
// parser produces.
type ParseTree interface {
	// Links returns the outgoing links found in the tree, in document
	// order, with unresolved (name-only) targets.
	Links() []ParsedLink
	// Tags returns the tag names found in the tree.
	Tags() []string
}

// ParsedLink is a link as extracted straight from a parse tree,
// before name resolution against the page tree.
type ParsedLink struct {
	Rel   Rel
	Names string
}

// Parser turns raw page bytes into a parse tree. Implementations live
// in internal/idxparser.
type Parser interface {
	Parse(content []byte) (ParseTree, error)
}
