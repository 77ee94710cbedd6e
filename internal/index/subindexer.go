package index

import (
	"context"
	"database/sql"
)

// SubIndexer is the common capability set from §4.4: pages, links,
// tags and plugin indexers all implement it. The pages sub-indexer is
// always registered first since every other sub-indexer depends on
// its row existing before their own callback runs.
type SubIndexer interface {
	// Name identifies the sub-indexer for logging and for the plugin
	// format-version property key.
	Name() string

	// OnDBInit creates the sub-indexer's own tables.
	OnDBInit(ctx context.Context, tx *sql.Tx) error

	// OnNewPage fires when a row transitions out of PageExistsUncertain.
	OnNewPage(ctx context.Context, tx *sql.Tx, page *Page) error

	// OnIndexPage fires when content was (re)read. tree is nil if the
	// backing file had vanished or failed to parse.
	OnIndexPage(ctx context.Context, tx *sql.Tx, page *Page, tree ParseTree) error

	// OnDeletePage fires just before a row is demoted or removed.
	OnDeletePage(ctx context.Context, tx *sql.Tx, page *Page) error

	// OnDeletedPage fires once the row is gone.
	OnDeletedPage(ctx context.Context, tx *sql.Tx, parent int64, basename string) error

	// OnTeardown drops the sub-indexer's tables; called by
	// RemovePluginIndexer.
	OnTeardown(ctx context.Context, tx *sql.Tx) error

	// BeforeCommit lets the sub-indexer resolve deferred work (link
	// resolution, placeholder creation) while still inside the write
	// transaction.
	BeforeCommit(ctx context.Context, tx *sql.Tx) error

	// AfterCommit drains queued post-commit signals. Called outside
	// any transaction, after a successful commit.
	AfterCommit()
}

// PluginSubIndexer is a SubIndexer attached dynamically (§4.4,
// "Plugin sub-indexers"), versioned so the index can detect a format
// change and trigger a full reindex.
type PluginSubIndexer interface {
	SubIndexer
	PluginName() string
	PluginDBFormat() string
}
