package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notewik/noteindex/internal/logging"
)

// internalOps is the set of primitive operations shared by the
// foreground facade and the background tree indexer (§4.2). It holds
// the ordered sub-indexer list — pages first, per §5 ordering
// guarantee 2 — and dispatches their lifecycle callbacks.
type internalOps struct {
	conn    *Conn
	layout  StorageLayout
	pages   *PagesIndexer
	subs    []SubIndexer // pages is subs[0]
	signals *signalRegistry
	log     *logging.Logger
}

func newInternalOps(conn *Conn, layout StorageLayout) *internalOps {
	signals := newSignalRegistry()
	conn.signals = signals
	pages := newPagesIndexer(signals)
	return &internalOps{
		conn:    conn,
		layout:  layout,
		pages:   pages,
		subs:    []SubIndexer{pages},
		signals: signals,
		log:     logging.GetLogger("index"),
	}
}

// addSubIndexer appends a sub-indexer to the dispatch order (used by
// New / AddPluginIndexer).
func (o *internalOps) addSubIndexer(ctx context.Context, tx *sql.Tx, s SubIndexer) error {
	if err := s.OnDBInit(ctx, tx); err != nil {
		return fmt.Errorf("index: init sub-indexer %s: %w", s.Name(), err)
	}
	o.subs = append(o.subs, s)
	return nil
}

func (o *internalOps) removeSubIndexer(ctx context.Context, tx *sql.Tx, name string) error {
	for i, s := range o.subs {
		if s.Name() == name {
			if err := s.OnTeardown(ctx, tx); err != nil {
				return err
			}
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetProperty reads a zim_index key. ok is false if absent.
func (o *internalOps) GetProperty(db DBTX, key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM zim_index WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return value, err == nil, err
}

// SetProperty upserts a zim_index key/value pair.
func (o *internalOps) SetProperty(db DBTX, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO zim_index(key, value) VALUES (?, ?)`, key, value)
	return err
}

// InsertPage creates a row under parent named basename. The page
// starts PageExistsUncertain: callers must follow with SetPageExists
// once existence is confirmed one way or the other.
func (o *internalOps) InsertPage(db DBTX, parent int64, basename string, needscheck NeedsCheck) (*Page, error) {
	res, err := db.Exec(
		`INSERT INTO pages(parent, basename, sortkey, page_exists, needscheck) VALUES (?, ?, ?, ?, ?)`,
		parent, basename, naturalSortKey(basename), PageExistsUncertain, needscheck,
	)
	if err != nil {
		return nil, fmt.Errorf("index: insert page %q: %w", basename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return o.pages.LookupByID(db, id)
}

// SetPageExists promotes page to level, promoting every ancestor
// first if needed to preserve the monotone-up-the-tree invariant
// (§3). OnNewPage fires for every row that transitions out of
// PageExistsUncertain.
func (o *internalOps) SetPageExists(ctx context.Context, tx *sql.Tx, page *Page, level PageExists) error {
	if page.Parent != 0 {
		parent, err := o.pages.LookupByID(tx, page.Parent)
		if err != nil {
			return err
		}
		if parent.PageExists < level {
			if err := o.SetPageExists(ctx, tx, parent, level); err != nil {
				return err
			}
		}
	}
	return o.setPageExists(ctx, tx, page, level)
}

func (o *internalOps) setPageExists(ctx context.Context, tx *sql.Tx, page *Page, level PageExists) error {
	wasUncertain := page.PageExists == PageExistsUncertain
	if _, err := tx.Exec(`UPDATE pages SET page_exists=? WHERE id=?`, level, page.ID); err != nil {
		return fmt.Errorf("index: set_page_exists %d: %w", page.ID, err)
	}
	page.PageExists = level
	if wasUncertain && level != PageExistsUncertain {
		for _, s := range o.subs {
			if err := s.OnNewPage(ctx, tx, page); err != nil {
				return fmt.Errorf("index: %s.on_new_page: %w", s.Name(), err)
			}
		}
	}
	return nil
}

// TouchPath ensures every ancestor in path exists (creating any
// missing row as NeedsCheckUpToDate/PageExistsUncertain) and returns
// the leaf row, inserting it too if absent.
func (o *internalOps) TouchPath(ctx context.Context, tx *sql.Tx, path string) (*Page, error) {
	cur := int64(rootID)
	var page *Page
	for _, part := range splitPath(path) {
		next, err := o.pages.LookupByParent(tx, cur, part)
		if _, notFound := err.(*IndexNotFoundError); notFound {
			next, err = o.InsertPage(tx, cur, part, NeedsCheckUpToDate)
			if err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		page = next
		cur = page.ID
	}
	if page == nil {
		return o.pages.LookupByID(tx, rootID)
	}
	return page, nil
}

// IndexPage resolves the backing file via the storage layout, parses
// its content, dispatches OnIndexPage to every sub-indexer, and
// writes content_etag/ctime/mtime. A vanished file is not an error:
// it's indexed as empty content with null etag/times, and the row is
// left for the next children reconciliation to delete.
func (o *internalOps) IndexPage(ctx context.Context, tx *sql.Tx, page *Page, path string) error {
	file, _, err := o.layout.MapPage(path)
	if err != nil {
		return fmt.Errorf("index: map_page %q: %w", path, err)
	}

	if file == nil || !file.Exists() {
		for _, s := range o.subs {
			if err := s.OnIndexPage(ctx, tx, page, nil); err != nil {
				return fmt.Errorf("index: %s.on_index_page: %w", s.Name(), err)
			}
		}
		_, err := tx.Exec(`UPDATE pages SET content_etag=NULL, ctime=NULL, mtime=NULL WHERE id=?`, page.ID)
		page.ContentEtag, page.CTime, page.MTime = nil, nil, nil
		return err
	}

	content, err := file.Read()
	var tree ParseTree
	if err != nil {
		o.log.Warn("failed to read page content, indexing as empty", "path", path, "error", err)
	} else {
		parser, perr := o.layout.GetFormat(file)
		if perr != nil {
			o.log.Warn("no parser for page, indexing as empty", "path", path, "error", perr)
		} else {
			tree, err = parser.Parse(content)
			if err != nil {
				o.log.Warn("parse error, indexing as empty", "path", path, "error", err)
				tree = nil
			}
		}
	}

	for _, s := range o.subs {
		if err := s.OnIndexPage(ctx, tx, page, tree); err != nil {
			return fmt.Errorf("index: %s.on_index_page: %w", s.Name(), err)
		}
	}

	mtime, merr := file.MTime()
	if merr != nil {
		return fmt.Errorf("index: mtime %q: %w", path, merr)
	}
	ctime, cerr := file.CTime()
	if cerr != nil {
		ctime = mtime
	}
	etag := mtime.String()

	if _, err := tx.Exec(
		`UPDATE pages SET content_etag=?, ctime=?, mtime=? WHERE id=?`,
		etag, ctime, mtime, page.ID,
	); err != nil {
		return fmt.Errorf("index: write content etag %d: %w", page.ID, err)
	}
	page.ContentEtag, page.CTime, page.MTime = &etag, &ctime, &mtime
	return nil
}

// DeletePage removes or demotes page. If any child still exists as
// AS_LINK or HAS_CONTENT, the row is demoted to AS_LINK with nulled
// etags; otherwise it's removed outright. A page whose remaining
// children are all PAGE_EXISTS_UNCERTAIN is an IndexConsistencyError.
// It returns the uppermost page the call removed or demoted: itself,
// or, when cleanup cascades up an empty ancestor chain, the last
// ancestor the cascade deleted — mirroring the original's returned
// indexpath, whose Parent is what callers driven by the notebook API
// pass to UpdateParent.
func (o *internalOps) DeletePage(ctx context.Context, tx *sql.Tx, page *Page, cleanup bool) (*Page, error) {
	for _, s := range o.subs {
		if err := s.OnDeletePage(ctx, tx, page); err != nil {
			return nil, fmt.Errorf("index: %s.on_delete_page: %w", s.Name(), err)
		}
	}

	children, err := o.pages.Children(tx, page.ID)
	if err != nil {
		return nil, err
	}

	hasSurvivingChild := false
	for _, c := range children {
		if c.PageExists >= PageExistsAsLink {
			hasSurvivingChild = true
			break
		}
	}

	if hasSurvivingChild {
		if _, err := tx.Exec(
			`UPDATE pages SET page_exists=?, content_etag=NULL, ctime=NULL, mtime=NULL, children_etag=NULL WHERE id=?`,
			PageExistsAsLink, page.ID,
		); err != nil {
			return nil, err
		}
		page.PageExists = PageExistsAsLink
		page.ContentEtag, page.CTime, page.MTime, page.ChildrenEtag = nil, nil, nil, nil
		return page, nil
	}

	if len(children) > 0 {
		return nil, &IndexConsistencyError{Reason: fmt.Sprintf("delete_page on page %d with non-placeholder children", page.ID)}
	}
	if _, err := tx.Exec(`DELETE FROM pages WHERE id=?`, page.ID); err != nil {
		return nil, err
	}
	for _, s := range o.subs {
		if err := s.OnDeletedPage(ctx, tx, page.Parent, page.Basename); err != nil {
			return nil, fmt.Errorf("index: %s.on_deleted_page: %w", s.Name(), err)
		}
	}

	if cleanup && page.Parent != 0 {
		parent, err := o.pages.LookupByID(tx, page.Parent)
		if err != nil {
			return nil, err
		}
		ok, err := o.CheckExistance(tx, parent)
		if err != nil {
			return nil, err
		}
		if !ok {
			return o.DeletePage(ctx, tx, parent, cleanup)
		}
	}
	return page, nil
}

// UpdateParent recomputes parent's children_etag if the current child
// set already matches the store listing; otherwise it leaves the
// record stale so the tree indexer's next CHECK_CHILDREN reconciles
// it properly instead of racing a partial update.
func (o *internalOps) UpdateParent(ctx context.Context, tx *sql.Tx, parent *Page, path string) error {
	names, err := o.layout.ListChildren(path)
	if err != nil {
		return err
	}
	ok, err := o.CheckPagelist(tx, parent, names)
	if err != nil || !ok {
		return err
	}
	_, folder, err := o.layout.MapPage(path)
	if err != nil {
		return err
	}
	var etag *string
	if folder != nil && folder.Exists() {
		mtime, err := folder.MTime()
		if err != nil {
			return err
		}
		s := mtime.String()
		etag = &s
	}
	_, err = tx.Exec(`UPDATE pages SET children_etag=? WHERE id=?`, etag, parent.ID)
	return err
}

// CheckPagelist reports whether names (from the store) and the set of
// non-AS_LINK children in the database coincide. This preserves the
// original's asymmetric semantics exactly (see DESIGN.md /
// SPEC_FULL.md §14): an extra name in the store that the DB doesn't
// have is a mismatch, but an extra DB row the store doesn't mention is
// silently ignored.
func (o *internalOps) CheckPagelist(db DBTX, page *Page, names []string) (bool, error) {
	rows, err := db.Query(`SELECT basename FROM pages WHERE parent=? AND page_exists<>?`, page.ID, PageExistsAsLink)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	dbNames := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
		dbNames[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, n := range names {
		if _, ok := dbNames[n]; !ok {
			return false, nil
		}
		delete(dbNames, n)
	}
	return true, nil
}

// CheckExistance reports whether page itself has content or has at
// least one content-bearing descendant.
func (o *internalOps) CheckExistance(db DBTX, page *Page) (bool, error) {
	if page.PageExists == PageExistsHasContent {
		return true, nil
	}
	var count int
	err := db.QueryRow(
		`WITH RECURSIVE descendants(id) AS (
			SELECT id FROM pages WHERE parent=?
			UNION ALL
			SELECT pages.id FROM pages JOIN descendants ON pages.parent = descendants.id
		)
		SELECT COUNT(*) FROM descendants JOIN pages ON pages.id = descendants.id
		WHERE pages.page_exists=?`,
		page.ID, PageExistsHasContent,
	).Scan(&count)
	return count > 0, err
}

// beforeCommit lets each sub-indexer resolve deferred work (link
// resolution creating placeholders, tag reconciliation) while still
// inside the write transaction, preserving the original's ordering
// rule that this must happen before commit across a whole sequence of
// page changes, not per-page, to avoid placeholder/delete races when
// many pages are touched in one transaction.
func (o *internalOps) beforeCommit(ctx context.Context, tx *sql.Tx) error {
	for _, s := range o.subs {
		if err := s.BeforeCommit(ctx, tx); err != nil {
			return fmt.Errorf("index: %s.before_commit: %w", s.Name(), err)
		}
	}
	return nil
}

// afterCommit drains every sub-indexer's queued signals, then the
// index-level registry. Call only after a successful commit.
func (o *internalOps) afterCommit() {
	for _, s := range o.subs {
		s.AfterCommit()
	}
	o.signals.Emit()
}
