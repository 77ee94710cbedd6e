package index

import (
	"encoding/hex"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortCollator produces natural-order (numeric-aware), locale-free
// collation keys for page basenames, so "page2" sorts before
// "page10". Using x/text's Numeric option instead of hand-rolling a
// digit-run parser is the whole point of pulling in this dependency
// (see SPEC_FULL.md §12).
var sortCollator = collate.New(language.Und, collate.Numeric)

// naturalSortKey returns a byte-comparable hex encoding of s's
// collation key, suitable for storing in pages.sortkey and sorting
// with a plain SQL ORDER BY.
func naturalSortKey(s string) string {
	var buf collate.Buffer
	key := sortCollator.Key(&buf, []byte(s))
	return hex.EncodeToString(key)
}
