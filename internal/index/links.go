package index

import (
	"context"
	"database/sql"
)

// LinksIndexer is the links sub-indexer (§4.4). On OnIndexPage it
// writes outgoing links with unresolved (name-only) targets; the
// actual target id is filled in later, in BeforeCommit, so link
// resolution can batch many inserts from one transaction instead of
// resolving O(N^2) during bulk imports (§9 "Deferred link
// resolution").
type LinksIndexer struct {
	ops     *internalOps
	pages   *PagesIndexer
	signals *signalRegistry

	// dirty tracks pages touched this transaction so BeforeCommit only
	// re-resolves links that changed, not the whole table.
	dirty map[int64]struct{}
}

func newLinksIndexer(ops *internalOps, pages *PagesIndexer, signals *signalRegistry) *LinksIndexer {
	return &LinksIndexer{ops: ops, pages: pages, signals: signals, dirty: make(map[int64]struct{})}
}

func (l *LinksIndexer) Name() string { return "links" }

func (l *LinksIndexer) OnDBInit(ctx context.Context, tx *sql.Tx) error { return nil }

func (l *LinksIndexer) OnNewPage(ctx context.Context, tx *sql.Tx, page *Page) error { return nil }

func (l *LinksIndexer) OnIndexPage(ctx context.Context, tx *sql.Tx, page *Page, tree ParseTree) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source=?`, page.ID); err != nil {
		return err
	}
	if tree == nil {
		l.dirty[page.ID] = struct{}{}
		return nil
	}
	for _, link := range tree.Links() {
		if _, err := tx.Exec(
			`INSERT INTO links(source, target, rel, names) VALUES (?, 0, ?, ?)`,
			page.ID, link.Rel, link.Names,
		); err != nil {
			return err
		}
	}
	l.dirty[page.ID] = struct{}{}
	return nil
}

func (l *LinksIndexer) OnDeletePage(ctx context.Context, tx *sql.Tx, page *Page) error {
	_, err := tx.Exec(`DELETE FROM links WHERE source=?`, page.ID)
	return err
}

func (l *LinksIndexer) OnDeletedPage(ctx context.Context, tx *sql.Tx, parent int64, basename string) error {
	return nil
}

func (l *LinksIndexer) OnTeardown(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`DELETE FROM links`)
	return err
}

// BeforeCommit resolves every unresolved link (target=0) against the
// current page tree, creating a placeholder page for any name that
// doesn't already exist. This is check_links from the original.
// Every name, relative or absolute, is looked up from the notebook
// root; the stored Rel value plays no part in resolution.
func (l *LinksIndexer) BeforeCommit(ctx context.Context, tx *sql.Tx) error {
	if len(l.dirty) == 0 {
		return nil
	}
	defer func() { l.dirty = make(map[int64]struct{}) }()

	rows, err := tx.Query(`SELECT rowid, source, rel, names FROM links WHERE target=0`)
	if err != nil {
		return err
	}
	type unresolved struct {
		rowid  int64
		source int64
		rel    Rel
		names  string
	}
	var pending []unresolved
	for rows.Next() {
		var u unresolved
		if err := rows.Scan(&u.rowid, &u.source, &u.rel, &u.names); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range pending {
		target, err := l.pages.LookupByPagename(tx, u.names)
		notFound := false
		if err != nil {
			if _, ok := err.(*IndexNotFoundError); !ok {
				return err
			}
			notFound = true
		}
		if notFound {
			target, err = l.ops.TouchPath(ctx, tx, u.names)
			if err != nil {
				return err
			}
			if target.PageExists == PageExistsUncertain {
				if err := l.ops.SetPageExists(ctx, tx, target, PageExistsAsLink); err != nil {
					return err
				}
			}
		}
		if _, err := tx.Exec(`UPDATE links SET target=? WHERE rowid=?`, target.ID, u.rowid); err != nil {
			return err
		}
		l.signals.Queue(SignalLinkInserted, &Link{Source: u.source, Target: target.ID, Rel: u.rel, Names: u.names})
	}

	return l.cleanupPlaceholders(ctx, tx)
}

// cleanupPlaceholders removes AS_LINK rows that now have zero
// incoming links and zero content-bearing descendants (§8 property
// 5), walking bottom-up so a chain of now-orphaned placeholders
// collapses in one pass.
func (l *LinksIndexer) cleanupPlaceholders(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT id FROM pages WHERE page_exists=? ORDER BY id DESC`, PageExistsAsLink)
	if err != nil {
		return err
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range candidates {
		page, err := l.pages.LookupByID(tx, id)
		if err != nil {
			if _, ok := err.(*IndexNotFoundError); ok {
				continue // already removed earlier in this same pass
			}
			return err
		}
		if page.PageExists != PageExistsAsLink {
			continue
		}

		var incoming int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM links WHERE target=?`, page.ID).Scan(&incoming); err != nil {
			return err
		}
		if incoming > 0 {
			continue
		}
		ok, err := l.ops.CheckExistance(tx, page)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := l.ops.DeletePage(ctx, tx, page, true); err != nil {
			return err
		}
	}
	return nil
}

func (l *LinksIndexer) AfterCommit() {}

// LookupIncoming returns every link whose target is page.ID ("what
// links here"), used by view-facing callers.
func (l *LinksIndexer) LookupIncoming(db DBTX, pageID int64) ([]*Link, error) {
	rows, err := db.Query(`SELECT source, target, rel, names FROM links WHERE target=?`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Link
	for rows.Next() {
		var link Link
		if err := rows.Scan(&link.Source, &link.Target, &link.Rel, &link.Names); err != nil {
			return nil, err
		}
		out = append(out, &link)
	}
	return out, rows.Err()
}
