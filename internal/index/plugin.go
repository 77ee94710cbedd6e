package index

import (
	"context"
	"database/sql"
)

// pluginFormatKey returns the zim_index property key that stores a
// plugin sub-indexer's last-seen PLUGIN_DB_FORMAT value.
func pluginFormatKey(pluginName string) string {
	return "plugin_format:" + pluginName
}

// AddPluginIndexer attaches plug to the dispatch order and, if its
// PluginDBFormat differs from what's stored (or nothing is stored
// yet), flags a full reindex: probably_uptodate is cleared and every
// content-bearing page is marked content_etag='_reindex_',
// needscheck=CHECK_PAGE so the next update re-visits it (§4.4, §8
// property 7).
func (idx *Index) AddPluginIndexer(plug PluginSubIndexer) error {
	return idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if err := idx.ops.addSubIndexer(ctx, tx, plug); err != nil {
			return err
		}

		stored, ok, err := idx.ops.GetProperty(tx, pluginFormatKey(plug.PluginName()))
		if err != nil {
			return err
		}
		if ok && stored == plug.PluginDBFormat() {
			return nil
		}

		if err := idx.ops.SetProperty(tx, pluginFormatKey(plug.PluginName()), plug.PluginDBFormat()); err != nil {
			return err
		}
		return idx.flagReindex(ctx, tx)
	})
}

// RemovePluginIndexer tears plug down and clears its stored format
// property, exactly as the original does on plugin disable (see
// SPEC_FULL.md §13.2): otherwise re-attaching the same plugin version
// later would be mistaken for "no format change" and skip reindexing.
func (idx *Index) RemovePluginIndexer(name string) error {
	return idx.conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if err := idx.ops.removeSubIndexer(ctx, tx, name); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM zim_index WHERE key=?`, pluginFormatKey(name))
		return err
	})
}

// flagReindex marks every page with non-null content_etag for
// re-check and clears probably_uptodate. Shared by plugin attach and
// by the standalone Index.FlagReindex (§13.1).
func (idx *Index) flagReindex(ctx context.Context, tx *sql.Tx) error {
	if err := idx.ops.SetProperty(tx, "probably_uptodate", "0"); err != nil {
		return err
	}
	_, err := tx.Exec(
		`UPDATE pages SET content_etag=?, needscheck=? WHERE content_etag IS NOT NULL`,
		reindexEtag, NeedsCheckPage,
	)
	return err
}
