package index

import (
	"context"
	"database/sql"
	"fmt"
)

// treeIndexer is the tree-walking state machine (§4.3): the body of
// both the foreground Index.Update and the background worker. It
// produces a lazy sequence of (CheckKind, Page) dispatches, selecting
// one row per call by priority and acting on it inside the caller's
// write transaction.
type treeIndexer struct {
	ops    *internalOps
	layout StorageLayout
}

func newTreeIndexer(ops *internalOps, layout StorageLayout) *treeIndexer {
	return &treeIndexer{ops: ops, layout: layout}
}

// queueCheck walks path upward until it finds an existing page (or
// the root) and marks it CHECK_TREE. An empty path enqueues the root
// itself.
func (t *treeIndexer) queueCheck(ctx context.Context, tx *sql.Tx, path string) error {
	page, err := t.ops.pages.LookupByPagename(tx, path)
	for {
		if err == nil {
			break
		}
		if _, ok := err.(*IndexNotFoundError); !ok {
			return err
		}
		parts := splitPath(path)
		if len(parts) == 0 {
			page, err = t.ops.pages.LookupByID(tx, rootID)
			break
		}
		path = joinPath(parts[:len(parts)-1])
		page, err = t.ops.pages.LookupByPagename(tx, path)
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE pages SET needscheck=? WHERE id=?`, NeedsCheckTree, page.ID)
	return err
}

// step selects and dispatches exactly one queued page. done is true
// when the queue was empty (and probably_uptodate has been set).
// Errors from an individual dispatch are contained here: the page is
// marked UPTODATE and the error is returned to the caller for
// logging, but the loop is not expected to abort because of it (see
// Index.Update, Index.UpdateIter and the worker loop).
func (t *treeIndexer) step(ctx context.Context, tx *sql.Tx) (done bool, dispatched *Page, kind CheckKind, stepErr error) {
	row := tx.QueryRow("SELECT " + pageColumns + " FROM pages WHERE needscheck > 0 ORDER BY needscheck, id LIMIT 1")
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		if serr := t.ops.SetProperty(tx, "probably_uptodate", "1"); serr != nil {
			return false, nil, 0, serr
		}
		return true, nil, 0, nil
	}
	if err != nil {
		return false, nil, 0, err
	}

	path, err := t.ops.pages.PathOf(tx, page)
	if err != nil {
		return false, nil, 0, err
	}

	var kindErr error
	switch page.NeedsCheck {
	case NeedsCheckTree:
		kind = CheckKindTree
		kindErr = t.checkTree(ctx, tx, page, path, true)
	case NeedsCheckChildren:
		kind = CheckKindChildren
		kindErr = t.checkTree(ctx, tx, page, path, false)
	case NeedsCheckPage:
		kind = CheckKindPage
		kindErr = t.checkPage(ctx, tx, page, path)
	case NeedsCheckUpdateChildren:
		kind = CheckKindChildren
		kindErr = t.checkTree(ctx, tx, page, path, false)
	default:
		// NEED_UPDATE_CHILDREN / NEED_UPDATE_PAGE are reserved for
		// driven updates (§3); nothing drives them yet, so treat them
		// like their CHECK_* counterpart.
		kind = CheckKindPage
		kindErr = t.checkPage(ctx, tx, page, path)
	}

	if kindErr != nil {
		if _, err := tx.Exec(`UPDATE pages SET needscheck=? WHERE id=?`, NeedsCheckUpToDate, page.ID); err != nil {
			return false, nil, 0, fmt.Errorf("index: contain dispatch error for page %d: %w (original: %v)", page.ID, err, kindErr)
		}
	}
	return false, page, kind, kindErr
}

func etagEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// checkTree implements both CHECK_TREE (recursive=true) and
// CHECK_CHILDREN (recursive=false): verify children_etag, reconcile
// the child set if it changed, and — only in recursive mode — also
// schedule grandchild checks when the etag didn't change but a deeper
// change might not have bumped this folder's own mtime.
func (t *treeIndexer) checkTree(ctx context.Context, tx *sql.Tx, page *Page, path string, recursive bool) error {
	_, folder, err := t.layout.MapPage(path)
	if err != nil {
		return err
	}

	var newEtag *string
	folderExists := folder != nil && folder.Exists()
	if folderExists {
		mtime, err := folder.MTime()
		if err != nil {
			return err
		}
		s := mtime.String()
		newEtag = &s
	}

	changed := !etagEqual(newEtag, page.ChildrenEtag)

	if changed {
		if err := t.ops.SetProperty(tx, "probably_uptodate", "0"); err != nil {
			return err
		}

		existing, err := t.ops.pages.Children(tx, page.ID)
		if err != nil {
			return err
		}

		switch {
		case !folderExists:
			if err := t.deleteChildren(ctx, tx, page); err != nil {
				return err
			}
		case len(existing) == 0:
			if err := t.newChildren(ctx, tx, page, path); err != nil {
				return err
			}
		default:
			if err := t.updateChildren(ctx, tx, page, path); err != nil {
				return err
			}
		}
	} else if recursive {
		children, err := t.ops.pages.Children(tx, page.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			childPath := joinPath(append(splitPath(path), child.Basename))
			_, childFolder, err := t.layout.MapPage(childPath)
			if err != nil {
				return err
			}
			if (childFolder != nil && childFolder.Exists()) || child.HasChildren() {
				if err := tx2Set(tx, child.ID, NeedsCheckTree); err != nil {
					return err
				}
			} else {
				if err := tx2Set(tx, child.ID, NeedsCheckPage); err != nil {
					return err
				}
			}
		}
	}

	if _, err := tx.Exec(`UPDATE pages SET children_etag=? WHERE id=?`, newEtag, page.ID); err != nil {
		return err
	}
	page.ChildrenEtag = newEtag

	next := NeedsCheckPage
	if page.IsRoot() {
		next = NeedsCheckUpToDate
	}
	return tx2Set(tx, page.ID, next)
}

func tx2Set(tx *sql.Tx, pageID int64, nc NeedsCheck) error {
	_, err := tx.Exec(`UPDATE pages SET needscheck=? WHERE id=?`, nc, pageID)
	return err
}

// newChildren handles the case where page currently has no child rows
// at all: enumerate the store fresh and insert every child.
func (t *treeIndexer) newChildren(ctx context.Context, tx *sql.Tx, page *Page, path string) error {
	names, err := t.layout.ListChildren(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		child, err := t.ops.pages.LookupByParent(tx, page.ID, name)
		if _, ok := err.(*IndexNotFoundError); ok {
			child, err = t.ops.InsertPage(tx, page.ID, name, NeedsCheckUpToDate)
		}
		if err != nil {
			return err
		}

		childPath := joinPath(append(splitPath(path), name))
		file, folder, err := t.layout.MapPage(childPath)
		if err != nil {
			return err
		}
		fileExists := file != nil && file.Exists()
		level := PageExistsAsLink
		if fileExists {
			level = PageExistsHasContent
		}
		if err := t.ops.SetPageExists(ctx, tx, child, level); err != nil {
			return err
		}

		nc := NeedsCheckPage
		if folder != nil && folder.Exists() {
			nc = NeedsCheckTree
		}
		if err := tx2Set(tx, child.ID, nc); err != nil {
			return err
		}
	}
	return nil
}

// updateChildren reconciles an existing child set against a fresh
// store listing: inserts newcomers, promotes existence where a file
// appeared, schedules a check per the decision table in §4.3, and
// finally deletes whichever non-placeholder child never turned up in
// the listing (childseen stayed 0).
func (t *treeIndexer) updateChildren(ctx context.Context, tx *sql.Tx, page *Page, path string) error {
	if _, err := tx.Exec(`UPDATE pages SET childseen=0 WHERE parent=? AND page_exists<>?`, page.ID, PageExistsAsLink); err != nil {
		return err
	}

	names, err := t.layout.ListChildren(path)
	if err != nil {
		return err
	}

	for _, name := range names {
		child, err := t.ops.pages.LookupByParent(tx, page.ID, name)
		if _, ok := err.(*IndexNotFoundError); ok {
			child, err = t.ops.InsertPage(tx, page.ID, name, NeedsCheckUpToDate)
		}
		if err != nil {
			return err
		}

		childPath := joinPath(append(splitPath(path), name))
		file, folder, err := t.layout.MapPage(childPath)
		if err != nil {
			return err
		}
		fileExists := file != nil && file.Exists()
		level := PageExistsAsLink
		if fileExists {
			level = PageExistsHasContent
		}
		if child.PageExists < level {
			if err := t.ops.SetPageExists(ctx, tx, child, level); err != nil {
				return err
			}
		}

		contentMismatch := fileExists != (child.ContentEtag != nil)
		folderHasChildren := folder != nil && folder.Exists()
		structMismatch := folderHasChildren != child.HasChildren()

		switch {
		case contentMismatch:
			if err := tx2Set(tx, child.ID, NeedsCheckPage); err != nil {
				return err
			}
		case structMismatch:
			if err := tx2Set(tx, child.ID, NeedsCheckChildren); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`UPDATE pages SET childseen=1 WHERE id=?`, child.ID); err != nil {
			return err
		}
	}

	rows, err := tx.Query(`SELECT id FROM pages WHERE parent=? AND page_exists<>? AND childseen=0`, page.ID, PageExistsAsLink)
	if err != nil {
		return err
	}
	var vanished []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		vanished = append(vanished, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range vanished {
		child, err := t.ops.pages.LookupByID(tx, id)
		if err != nil {
			return err
		}
		if err := t.deleteChildren(ctx, tx, child); err != nil {
			return err
		}
		if _, err := t.ops.DeletePage(ctx, tx, child, false); err != nil {
			return err
		}
	}
	return nil
}

// deleteChildren recursively empties page's subtree, depth-first,
// ignoring transient inconsistencies (a child that already vanished
// mid-walk is simply skipped). The caller is responsible for page
// itself.
func (t *treeIndexer) deleteChildren(ctx context.Context, tx *sql.Tx, page *Page) error {
	children, err := t.ops.pages.Children(tx, page.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := t.deleteChildren(ctx, tx, child); err != nil {
			return err
		}
		if _, err := t.ops.DeletePage(ctx, tx, child, false); err != nil {
			return err
		}
	}
	return nil
}

// checkPage verifies content_etag and, if it moved, reindexes the
// page; then it re-derives children_etag so a content check that also
// discovers a structural change falls through to CHECK_CHILDREN
// instead of going fully UPTODATE.
func (t *treeIndexer) checkPage(ctx context.Context, tx *sql.Tx, page *Page, path string) error {
	file, folder, err := t.layout.MapPage(path)
	if err != nil {
		return err
	}

	var newContentEtag *string
	if file != nil && file.Exists() {
		mtime, err := file.MTime()
		if err != nil {
			return err
		}
		s := mtime.String()
		newContentEtag = &s
	}

	if !etagEqual(newContentEtag, page.ContentEtag) {
		if err := t.ops.IndexPage(ctx, tx, page, path); err != nil {
			return err
		}
	}

	var newChildrenEtag *string
	folderExists := folder != nil && folder.Exists()
	if folderExists {
		mtime, err := folder.MTime()
		if err != nil {
			return err
		}
		s := mtime.String()
		newChildrenEtag = &s
	}

	if !etagEqual(newChildrenEtag, page.ChildrenEtag) {
		if err := t.ops.SetProperty(tx, "probably_uptodate", "0"); err != nil {
			return err
		}
		return tx2Set(tx, page.ID, NeedsCheckChildren)
	}
	return tx2Set(tx, page.ID, NeedsCheckUpToDate)
}
