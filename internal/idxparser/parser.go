// Package idxparser provides a small wikitext-ish parser for page
// content: just enough structure (outgoing links, tags) for
// internal/index's link and tag sub-indexers to index against. It
// does not attempt to be a full markup parser; that's explicitly out
// of scope (spec.md §1, "The parser... called synchronously during
// content indexing" — a collaborator, not core).
package idxparser

import (
	"regexp"
	"strings"

	"github.com/notewik/noteindex/internal/index"
)

// linkPattern matches "[[Target]]" and "[[Target|label]]" wiki links.
var linkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)

// tagPattern matches "@tagname" tokens.
var tagPattern = regexp.MustCompile(`(^|\s)@([A-Za-z0-9_\-:]+)`)

// Parser implements index.Parser with a regex-based link/tag
// extractor over raw bytes.
type Parser struct{}

// New returns the default parser.
func New() *Parser { return &Parser{} }

// Parse scans content for [[links]] and @tags and returns them as a
// Tree; it never itself returns an error; a future format-aware
// parser (e.g. one that rejects invalid encoding) is the only
// realistic source of a ParsingError from this package.
func (p *Parser) Parse(content []byte) (index.ParseTree, error) {
	text := string(content)
	tree := &Tree{}

	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		rel := index.RelRelative
		if strings.HasPrefix(name, ":") {
			rel = index.RelAbsolute
			name = strings.TrimPrefix(name, ":")
		}
		tree.links = append(tree.links, index.ParsedLink{Rel: rel, Names: name})
	}

	seen := make(map[string]struct{})
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := m[2]
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tree.tags = append(tree.tags, tag)
	}

	return tree, nil
}

// Tree is the parse result: the outgoing links and tags found in one
// page's content, in document order.
type Tree struct {
	links []index.ParsedLink
	tags  []string
}

func (t *Tree) Links() []index.ParsedLink { return t.links }
func (t *Tree) Tags() []string            { return t.tags }
