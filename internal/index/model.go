package index

import "time"

// PageExists encodes how confident the index is that a page row
// corresponds to something real in the store. Ordering matters: it is
// the monotone-up-the-tree invariant checked throughout this package.
type PageExists int

const (
	// PageExistsUncertain marks a row just inserted by touch_path-style
	// ancestor creation; existence has not been confirmed either way.
	PageExistsUncertain PageExists = iota
	// PageExistsAsLink marks a placeholder: no backing content, kept
	// only because something links to it.
	PageExistsAsLink
	// PageExistsHasContent marks a page with a backing file or folder.
	PageExistsHasContent
)

func (p PageExists) String() string {
	switch p {
	case PageExistsUncertain:
		return "uncertain"
	case PageExistsAsLink:
		return "as_link"
	case PageExistsHasContent:
		return "has_content"
	default:
		return "unknown"
	}
}

// NeedsCheck is the work-queue priority for a page row. Lower values
// sort first; 0 means the row is not queued at all.
type NeedsCheck int

const (
	NeedsCheckUpToDate       NeedsCheck = iota // 0, not queued
	NeedsCheckUpdateChildren                   // 1, reserved for driven updates
	NeedsCheckUpdatePage                        // 2, reserved for driven updates
	NeedsCheckTree                               // 3
	NeedsCheckChildren                            // 4
	NeedsCheckPage                                 // 5
)

func (n NeedsCheck) String() string {
	switch n {
	case NeedsCheckUpToDate:
		return "uptodate"
	case NeedsCheckUpdateChildren:
		return "need_update_children"
	case NeedsCheckUpdatePage:
		return "need_update_page"
	case NeedsCheckTree:
		return "check_tree"
	case NeedsCheckChildren:
		return "check_children"
	case NeedsCheckPage:
		return "check_page"
	default:
		return "unknown"
	}
}

// rootID is the well-known id of the notebook root, the synthetic
// ancestor of every top-level page and the source of the "current
// page placeholder" links.
const rootID int64 = 1

// reindexEtag is written to content_etag to force a CHECK_PAGE cycle
// on every content-bearing page, used by plugin-format-version
// reindex and by FlagReindex.
const reindexEtag = "_reindex_"

// Page is the in-memory projection of one row of the pages table.
// It is a snapshot: callers that need a fresh value should re-fetch
// through the pages sub-indexer rather than mutate this struct and
// expect it to be persisted.
type Page struct {
	ID           int64
	Parent       int64
	Basename     string
	SortKey      string
	PageExists   PageExists
	ContentEtag  *string
	ChildrenEtag *string
	CTime        *time.Time
	MTime        *time.Time
	NChildren    int
	NeedsCheck   NeedsCheck
	ChildSeen    bool
}

// IsRoot reports whether the page is the synthetic notebook root.
func (p *Page) IsRoot() bool {
	return p.ID == rootID
}

// HasChildren resolves the page.haschildren tie-break left undefined
// by the original implementation (see DESIGN.md): computed from the
// row snapshot's n_children count rather than consulting the store,
// since the check is about index-internal shape.
func (p *Page) HasChildren() bool {
	return p.NChildren > 0
}

// Rel is the kind of a link's target reference as written by the
// parser: absolute (notebook-rooted) or relative to the source page.
type Rel int

const (
	RelAbsolute Rel = iota
	RelRelative
)

// Link is one row of the links table. Target may be zero while the
// link is unresolved; Names carries the literal text used to name the
// target, which resolution consults to find or create the target row.
type Link struct {
	Source int64
	Target int64
	Rel    Rel
	Names  string
}

// Tag is one row of the page/tag association table maintained by the
// tags sub-indexer.
type Tag struct {
	Page int64
	Name string
}

// CheckKind names the dispatch performed by the tree indexer for one
// queue entry; used in signal payloads and tests.
type CheckKind int

const (
	CheckKindTree CheckKind = iota
	CheckKindChildren
	CheckKindPage
)

func (k CheckKind) String() string {
	switch k {
	case CheckKindTree:
		return "check_tree"
	case CheckKindChildren:
		return "check_children"
	case CheckKindPage:
		return "check_page"
	default:
		return "unknown"
	}
}
