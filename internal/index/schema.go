package index

// SchemaVersion is written to zim_index.db_version on init and checked
// on every open; any mismatch triggers a full rebuild of the schema
// (see Conn.init).
const SchemaVersion = "0.6"

// initSchema creates the tables this package owns. Sub-indexers create
// their own tables from OnDBInit, invoked right after this runs.
const initSchema = `
CREATE TABLE IF NOT EXISTS zim_index (
	key TEXT,
	value TEXT,
	CONSTRAINT uc_meta_once UNIQUE (key)
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	parent INTEGER,
	basename TEXT,
	sortkey TEXT,
	page_exists INTEGER,
	content_etag TEXT,
	children_etag TEXT,
	ctime TIMESTAMP,
	mtime TIMESTAMP,
	n_children INTEGER DEFAULT 0,
	needscheck INTEGER DEFAULT 0,
	childseen INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS pages_parent ON pages(parent);
CREATE INDEX IF NOT EXISTS pages_needscheck ON pages(needscheck, id);

CREATE TABLE IF NOT EXISTS links (
	source INTEGER,
	target INTEGER,
	rel INTEGER,
	names TEXT
);

CREATE INDEX IF NOT EXISTS links_source ON links(source);
CREATE INDEX IF NOT EXISTS links_target ON links(target);
`

// dropSchema removes every table this package and its sub-indexers
// own. Used by Flush and by the version-mismatch recovery path.
const dropSchema = `
DROP TABLE IF EXISTS zim_index;
DROP TABLE IF EXISTS pages;
DROP TABLE IF EXISTS links;
DROP TABLE IF EXISTS tags;
DROP TABLE IF EXISTS page_tags;
`

// rootInsert seeds the synthetic root row (id=rootID) that every
// top-level page is parented under.
const rootInsert = `
INSERT OR IGNORE INTO pages (id, parent, basename, sortkey, page_exists, needscheck)
VALUES (1, 0, '', '', ?, 0);
`
