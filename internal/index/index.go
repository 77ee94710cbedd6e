package index

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/notewik/noteindex/internal/logging"
)

// Index is the public facade (§4.5): it owns a DB connection manager
// and an ordered list of sub-indexers, and exposes the imperative
// entry points callers use to keep the index in sync with the store.
type Index struct {
	conn   *Conn
	layout StorageLayout
	ops    *internalOps
	tree   *treeIndexer
	links  *LinksIndexer
	tags   *TagsIndexer
	worker *worker
	log    *logging.Logger
}

// New wires a connection and a storage layout into a ready-to-use
// Index: pages is always the first sub-indexer (other sub-indexers
// depend on its rows existing), links and tags are registered next.
func New(conn *Conn, layout StorageLayout) (*Index, error) {
	ops := newInternalOps(conn, layout)
	idx := &Index{
		conn:   conn,
		layout: layout,
		ops:    ops,
		tree:   newTreeIndexer(ops, layout),
		links:  newLinksIndexer(ops, ops.pages, ops.signals),
		tags:   newTagsIndexer(ops.signals),
		log:    logging.GetLogger("index"),
	}
	idx.worker = newWorker(idx)

	err := conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if err := idx.ops.addSubIndexer(ctx, tx, idx.links); err != nil {
			return err
		}
		return idx.ops.addSubIndexer(ctx, tx, idx.tags)
	})
	if err != nil {
		return nil, fmt.Errorf("index: initialise sub-indexers: %w", err)
	}
	return idx, nil
}

// queueCheck wraps treeIndexer.queueCheck in its own write
// transaction, for use by Update/StartUpdate entry points.
func (idx *Index) queueCheck(ctx context.Context, path string) error {
	return idx.conn.WithWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return idx.tree.queueCheck(ctx, tx, path)
	})
}

// step runs exactly one tree-indexer dispatch inside its own write
// transaction, running BeforeCommit/AfterCommit around it so signals
// and deferred link resolution behave the same here as in every other
// entry point.
func (idx *Index) step(ctx context.Context) (finished bool, page *Page, kind CheckKind, dispatchErr error) {
	err := idx.conn.WithWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var stepErr error
		finished, page, kind, stepErr = idx.tree.step(ctx, tx)
		if finished {
			return nil
		}
		if err := idx.ops.beforeCommit(ctx, tx); err != nil {
			return err
		}
		dispatchErr = stepErr
		return nil
	})
	if err != nil {
		return false, page, kind, err
	}
	idx.ops.afterCommit()
	return finished, page, kind, dispatchErr
}

// Update runs the state machine to completion in one write
// transaction, stopping any running worker first. It returns once the
// whole subtree rooted at path (or the whole notebook, if path is
// empty) is up to date.
func (idx *Index) Update(path string) error {
	idx.StopUpdate()
	idx.WaitForUpdate(0)

	ctx := context.Background()
	err := idx.conn.WithWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := idx.tree.queueCheck(ctx, tx, path); err != nil {
			return err
		}
		for {
			finished, page, _, stepErr := idx.tree.step(ctx, tx)
			if stepErr != nil {
				idx.log.Error("dispatch error during update, page skipped", "page", page, "error", stepErr)
			}
			if finished {
				break
			}
			if err := idx.ops.beforeCommit(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	idx.ops.afterCommit()
	return nil
}

// UpdateIter is the synchronous iterator form of Update: it commits
// between dispatches (unlike Update's single transaction), so a
// concurrent reader may interleave between each step, and yields
// every (CheckKind, Page) it dispatched along the way.
func (idx *Index) UpdateIter(path string) iter.Seq2[CheckKind, *Page] {
	return func(yield func(CheckKind, *Page) bool) {
		ctx := context.Background()
		if err := idx.queueCheck(ctx, path); err != nil {
			idx.log.Error("failed to enqueue update", "path", path, "error", err)
			return
		}
		for {
			finished, page, kind, err := idx.step(ctx)
			if err != nil {
				idx.log.Error("dispatch error during update_iter, page skipped", "page", page, "error", err)
			}
			if finished {
				return
			}
			if page != nil && !yield(kind, page) {
				return
			}
		}
	}
}

// StartUpdate launches the background worker over path unless one is
// already running, in which case it's a no-op.
func (idx *Index) StartUpdate(path string) error {
	err := idx.worker.start(path)
	if err == ErrWorkerRunning {
		return nil
	}
	return err
}

// StopUpdate signals the background worker to stop at its next
// iteration boundary. Safe to call when nothing is running.
func (idx *Index) StopUpdate() {
	idx.worker.stop()
}

// WaitForUpdate joins the background worker, waiting up to timeout (0
// means wait indefinitely). Returns true iff the worker was still
// running when the wait ended.
func (idx *Index) WaitForUpdate(timeout time.Duration) bool {
	if !idx.worker.isRunning() {
		return false
	}
	if timeout <= 0 {
		return idx.worker.wait(nil)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return idx.worker.wait(timer.C)
}

// Flush drops and recreates every table under a single write context:
// core schema plus every registered sub-indexer's own tables.
func (idx *Index) Flush() error {
	idx.StopUpdate()
	idx.WaitForUpdate(0)

	return idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.Exec(dropSchema); err != nil {
			return err
		}
		if _, err := tx.Exec(initSchema); err != nil {
			return err
		}
		if _, err := tx.Exec(rootInsert, PageExistsHasContent); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO zim_index(key, value) VALUES ('db_version', ?), ('probably_uptodate', '0')`,
			SchemaVersion,
		); err != nil {
			return err
		}
		for _, s := range idx.ops.subs {
			if err := s.OnDBInit(ctx, tx); err != nil {
				return fmt.Errorf("index: re-init %s after flush: %w", s.Name(), err)
			}
		}
		return nil
	})
}

// OnStorePage indexes path's content and reconciles its parent's
// children_etag in one transaction: an interactive save pre-empts any
// running worker because both go through Conn's single change lock.
func (idx *Index) OnStorePage(path string) error {
	err := idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		page, err := idx.ops.TouchPath(ctx, tx, path)
		if err != nil {
			return err
		}
		if page.PageExists != PageExistsHasContent {
			if err := idx.ops.SetPageExists(ctx, tx, page, PageExistsHasContent); err != nil {
				return err
			}
		}
		if err := idx.ops.IndexPage(ctx, tx, page, path); err != nil {
			return err
		}
		parent, err := idx.ops.pages.LookupByID(tx, page.Parent)
		if err != nil {
			return err
		}
		parentPath := parentPathOf(path)
		if err := idx.ops.UpdateParent(ctx, tx, parent, parentPath); err != nil {
			return err
		}
		return idx.ops.beforeCommit(ctx, tx)
	})
	if err != nil {
		return err
	}
	idx.ops.afterCommit()
	return nil
}

func parentPathOf(path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ""
	}
	return joinPath(parts[:len(parts)-1])
}

// OnMovePage relocates the subtree at old to new. If new is the same
// page as old or a descendant of it, no delete-then-rebuild happens —
// this short-circuit is carried over from the original's exact
// ischild check (SPEC_FULL.md §13.4): deleting old first would delete
// new's own backing content along the way.
func (idx *Index) OnMovePage(oldPath, newPath string) error {
	if newPath != oldPath && !isChildPath(newPath, oldPath) {
		if err := idx.OnDeletePage(oldPath); err != nil {
			return err
		}
	}
	return idx.Update(newPath)
}

// isChildPath reports whether candidate is path itself or a
// descendant of it.
func isChildPath(candidate, path string) bool {
	if candidate == path {
		return true
	}
	prefix := path + ":"
	return len(candidate) > len(prefix) && candidate[:len(prefix)] == prefix
}

// OnDeletePage removes path's whole subtree: every descendant is
// visited bottom-up via PagesIndexer.WalkBottomUp and deleted, then
// path's own row is deleted with cleanup so an orphaned, content-less
// ancestor chain collapses too — then, mirroring the original's
// on_delete_page, UpdateParent runs against whichever ancestor the
// cleanup cascade actually stopped at.
func (idx *Index) OnDeletePage(path string) error {
	err := idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		root, err := idx.ops.pages.LookupByPagename(tx, path)
		if _, ok := err.(*IndexNotFoundError); ok {
			return nil
		}
		if err != nil {
			return err
		}

		if err := idx.ops.pages.WalkBottomUp(tx, root, func(child *Page) error {
			_, err := idx.ops.DeletePage(ctx, tx, child, false)
			return err
		}); err != nil {
			return err
		}

		lastDeleted, err := idx.ops.DeletePage(ctx, tx, root, true)
		if err != nil {
			return err
		}
		if lastDeleted.Parent != 0 {
			parent, err := idx.ops.pages.LookupByID(tx, lastDeleted.Parent)
			if err != nil {
				return err
			}
			lastDeletedPath, err := idx.ops.pages.PathOf(tx, lastDeleted)
			if err != nil {
				return err
			}
			if err := idx.ops.UpdateParent(ctx, tx, parent, parentPathOf(lastDeletedPath)); err != nil {
				return err
			}
		}
		return idx.ops.beforeCommit(ctx, tx)
	})
	if err != nil {
		return err
	}
	idx.ops.afterCommit()
	return nil
}

// TouchCurrentPagePlaceholder marks path as the UI's "current page":
// every synthetic root-sourced link is removed, placeholder cleanup
// runs, and then — only if path doesn't already exist — a fresh
// ROOT-sourced link is created and path promoted to AS_LINK.
func (idx *Index) TouchCurrentPagePlaceholder(path string) error {
	err := idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM links WHERE source=?`, rootID); err != nil {
			return err
		}
		if err := idx.links.cleanupPlaceholders(ctx, tx); err != nil {
			return err
		}

		page, err := idx.ops.pages.LookupByPagename(tx, path)
		exists := err == nil && page.PageExists != PageExistsUncertain
		if exists {
			return nil
		}

		page, err = idx.ops.TouchPath(ctx, tx, path)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO links(source, target, rel, names) VALUES (?, ?, ?, ?)`,
			rootID, page.ID, RelAbsolute, path,
		); err != nil {
			return err
		}
		return idx.ops.SetPageExists(ctx, tx, page, PageExistsAsLink)
	})
	if err != nil {
		return err
	}
	idx.ops.afterCommit()
	return nil
}

// FlagReindex marks every content-bearing page for re-check and
// clears probably_uptodate, independent of any plugin attach — a
// standalone entry point the original exposes that spec.md's
// plugin-triggered description didn't call out (SPEC_FULL.md §13.1).
func (idx *Index) FlagReindex() error {
	return idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		return idx.flagReindex(ctx, tx)
	})
}

// ProbablyUptodate reads the single externally visible freshness
// signal. It is cleared whenever a divergence is detected and set
// exactly once, at the natural end of the state machine.
func (idx *Index) ProbablyUptodate() (bool, error) {
	var value string
	err := idx.conn.WithRead(context.Background(), func(db DBTX) error {
		v, _, err := idx.ops.GetProperty(db, "probably_uptodate")
		value = v
		return err
	})
	return value == "1", err
}

// Connect routes to the signal registry shared by every sub-indexer.
func (idx *Index) Connect(signal string, handler Handler) int {
	return idx.ops.signals.Connect(signal, handler)
}

// Disconnect removes a handler registered via Connect.
func (idx *Index) Disconnect(id int) {
	idx.ops.signals.Disconnect(id)
}

// LookupByPagename exposes a read-only view lookup. PAGE_EXISTS_UNCERTAIN
// rows never reach callers outside this package (SPEC_FULL.md §14):
// the safer contract from the original's open question is enforced
// here rather than left to every call site.
func (idx *Index) LookupByPagename(path string) (*Page, error) {
	var page *Page
	err := idx.conn.WithRead(context.Background(), func(db DBTX) error {
		p, err := idx.ops.pages.LookupByPagename(db, path)
		page = p
		return err
	})
	if err != nil {
		return nil, err
	}
	if page.PageExists == PageExistsUncertain {
		return nil, &IndexNotFoundError{Path: path}
	}
	return page, nil
}

// Close disconnects the underlying database connection.
func (idx *Index) Close() error {
	idx.StopUpdate()
	idx.WaitForUpdate(5 * time.Second)
	return idx.conn.Disconnect()
}
