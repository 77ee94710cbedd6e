package index

import (
	"context"
	"database/sql"
)

// tagsSchema is created by TagsIndexer.OnDBInit, not by the shared
// schema in schema.go, since tags are a sub-indexer concern (§4.4)
// rather than core tree state.
const tagsSchema = `
CREATE TABLE IF NOT EXISTS page_tags (
	page INTEGER,
	tag TEXT
);
CREATE INDEX IF NOT EXISTS page_tags_page ON page_tags(page);
CREATE INDEX IF NOT EXISTS page_tags_tag ON page_tags(tag);
`

// TagsIndexer is the tags sub-indexer: on OnIndexPage it replaces a
// page's tag set wholesale; on delete it drops the associations.
type TagsIndexer struct {
	signals *signalRegistry
}

func newTagsIndexer(signals *signalRegistry) *TagsIndexer {
	return &TagsIndexer{signals: signals}
}

func (t *TagsIndexer) Name() string { return "tags" }

func (t *TagsIndexer) OnDBInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(tagsSchema)
	return err
}

func (t *TagsIndexer) OnNewPage(ctx context.Context, tx *sql.Tx, page *Page) error { return nil }

func (t *TagsIndexer) OnIndexPage(ctx context.Context, tx *sql.Tx, page *Page, tree ParseTree) error {
	if _, err := tx.Exec(`DELETE FROM page_tags WHERE page=?`, page.ID); err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	for _, name := range tree.Tags() {
		if _, err := tx.Exec(`INSERT INTO page_tags(page, tag) VALUES (?, ?)`, page.ID, name); err != nil {
			return err
		}
		t.signals.Queue(SignalTagInserted, &Tag{Page: page.ID, Name: name})
	}
	return nil
}

func (t *TagsIndexer) OnDeletePage(ctx context.Context, tx *sql.Tx, page *Page) error {
	rows, err := tx.Query(`SELECT tag FROM page_tags WHERE page=?`, page.ID)
	if err != nil {
		return err
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM page_tags WHERE page=?`, page.ID); err != nil {
		return err
	}
	for _, n := range names {
		t.signals.Queue(SignalTagRemoved, &Tag{Page: page.ID, Name: n})
	}
	return nil
}

func (t *TagsIndexer) OnDeletedPage(ctx context.Context, tx *sql.Tx, parent int64, basename string) error {
	return nil
}

func (t *TagsIndexer) OnTeardown(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS page_tags`)
	return err
}

func (t *TagsIndexer) BeforeCommit(ctx context.Context, tx *sql.Tx) error { return nil }

func (t *TagsIndexer) AfterCommit() {}

// LookupByTag returns the ids of every page carrying tag name.
func (t *TagsIndexer) LookupByTag(db DBTX, name string) ([]int64, error) {
	rows, err := db.Query(`SELECT page FROM page_tags WHERE tag=?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
