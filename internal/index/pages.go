package index

import (
	"context"
	"database/sql"
	"strings"
)

// splitPath breaks a colon-delimited page name ("A:B:C") into its
// basenames. The notebook root is the empty path, []string{}.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ":")
}

func joinPath(parts []string) string {
	return strings.Join(parts, ":")
}

// PagesIndexer is the canonical pages sub-indexer (§4.4): it owns no
// tables of its own (the pages table is created by conn.go's schema,
// shared by every sub-indexer) but provides the lookup surface used
// throughout the package and by callers outside it.
type PagesIndexer struct {
	signals *signalRegistry
}

func newPagesIndexer(signals *signalRegistry) *PagesIndexer {
	return &PagesIndexer{signals: signals}
}

func (p *PagesIndexer) Name() string { return "pages" }

func (p *PagesIndexer) OnDBInit(ctx context.Context, tx *sql.Tx) error { return nil }

func (p *PagesIndexer) OnNewPage(ctx context.Context, tx *sql.Tx, page *Page) error {
	p.signals.Queue(SignalPageInserted, page)
	return nil
}

func (p *PagesIndexer) OnIndexPage(ctx context.Context, tx *sql.Tx, page *Page, tree ParseTree) error {
	p.signals.Queue(SignalPageUpdated, page)
	return nil
}

func (p *PagesIndexer) OnDeletePage(ctx context.Context, tx *sql.Tx, page *Page) error {
	return nil
}

func (p *PagesIndexer) OnDeletedPage(ctx context.Context, tx *sql.Tx, parent int64, basename string) error {
	p.signals.Queue(SignalPageRemoved, struct {
		Parent   int64
		Basename string
	}{parent, basename})
	return nil
}

func (p *PagesIndexer) OnTeardown(ctx context.Context, tx *sql.Tx) error { return nil }

func (p *PagesIndexer) BeforeCommit(ctx context.Context, tx *sql.Tx) error { return nil }

func (p *PagesIndexer) AfterCommit() {}

const pageColumns = "id, parent, basename, sortkey, page_exists, content_etag, children_etag, ctime, mtime, n_children, needscheck, childseen"

func scanPage(row *sql.Row) (*Page, error) {
	var p Page
	var ctime, mtime sql.NullTime
	var contentEtag, childrenEtag sql.NullString
	var childSeen int
	err := row.Scan(&p.ID, &p.Parent, &p.Basename, &p.SortKey, &p.PageExists,
		&contentEtag, &childrenEtag, &ctime, &mtime, &p.NChildren, &p.NeedsCheck, &childSeen)
	if err != nil {
		return nil, err
	}
	if contentEtag.Valid {
		p.ContentEtag = &contentEtag.String
	}
	if childrenEtag.Valid {
		p.ChildrenEtag = &childrenEtag.String
	}
	if ctime.Valid {
		p.CTime = &ctime.Time
	}
	if mtime.Valid {
		p.MTime = &mtime.Time
	}
	p.ChildSeen = childSeen != 0
	return &p, nil
}

func scanPageRows(rows *sql.Rows) (*Page, error) {
	var p Page
	var ctime, mtime sql.NullTime
	var contentEtag, childrenEtag sql.NullString
	var childSeen int
	err := rows.Scan(&p.ID, &p.Parent, &p.Basename, &p.SortKey, &p.PageExists,
		&contentEtag, &childrenEtag, &ctime, &mtime, &p.NChildren, &p.NeedsCheck, &childSeen)
	if err != nil {
		return nil, err
	}
	if contentEtag.Valid {
		p.ContentEtag = &contentEtag.String
	}
	if childrenEtag.Valid {
		p.ChildrenEtag = &childrenEtag.String
	}
	if ctime.Valid {
		p.CTime = &ctime.Time
	}
	if mtime.Valid {
		p.MTime = &mtime.Time
	}
	p.ChildSeen = childSeen != 0
	return &p, nil
}

// LookupByID fetches a page row by its stable id.
func (p *PagesIndexer) LookupByID(db DBTX, id int64) (*Page, error) {
	row := db.QueryRow("SELECT "+pageColumns+" FROM pages WHERE id=?", id)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, &IndexNotFoundError{Path: "<id>"}
	}
	return page, err
}

// LookupByParent fetches the child of parent named basename.
func (p *PagesIndexer) LookupByParent(db DBTX, parent int64, basename string) (*Page, error) {
	row := db.QueryRow("SELECT "+pageColumns+" FROM pages WHERE parent=? AND basename=?", parent, basename)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, &IndexNotFoundError{Path: basename}
	}
	return page, err
}

// LookupByPagename resolves a full colon-delimited path from the
// root. Any missing ancestor is reported as IndexNotFoundError.
func (p *PagesIndexer) LookupByPagename(db DBTX, path string) (*Page, error) {
	cur := int64(rootID)
	var page *Page
	for _, part := range splitPath(path) {
		next, err := p.LookupByParent(db, cur, part)
		if err != nil {
			return nil, err
		}
		page = next
		cur = page.ID
	}
	if page == nil {
		return p.LookupByID(db, rootID)
	}
	return page, nil
}

// Children returns the direct children of parent, ordered by sortkey.
func (p *PagesIndexer) Children(db DBTX, parent int64) ([]*Page, error) {
	rows, err := db.Query("SELECT "+pageColumns+" FROM pages WHERE parent=? ORDER BY sortkey, id", parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Page
	for rows.Next() {
		pg, err := scanPageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pg)
	}
	return out, rows.Err()
}

// WalkBottomUp visits every descendant of root (exclusive) depth
// first, children before their parent, for use by delete-subtree
// traversal.
func (p *PagesIndexer) WalkBottomUp(db DBTX, root *Page, visit func(*Page) error) error {
	children, err := p.Children(db, root.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := p.WalkBottomUp(db, child, visit); err != nil {
			return err
		}
		if err := visit(child); err != nil {
			return err
		}
	}
	return nil
}

// PathOf reconstructs the colon-delimited path of page by walking
// parent pointers back to the root.
func (p *PagesIndexer) PathOf(db DBTX, page *Page) (string, error) {
	var parts []string
	cur := page
	for cur.ID != rootID {
		parts = append([]string{cur.Basename}, parts...)
		parent, err := p.LookupByID(db, cur.Parent)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return joinPath(parts), nil
}
