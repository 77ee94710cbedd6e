package idxparser

import (
	"testing"

	"github.com/notewik/noteindex/internal/index"
)

func TestParse_ExtractsAbsoluteAndRelativeLinks(t *testing.T) {
	p := New()
	tree, err := p.Parse([]byte("see [[:Projects:Go]] and also [[Rust|the rust page]]"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	links := tree.Links()
	if len(links) != 2 {
		t.Fatalf("Links() = %v, want 2 entries", links)
	}

	if links[0].Rel != index.RelAbsolute || links[0].Names != "Projects:Go" {
		t.Errorf("links[0] = %+v, want {RelAbsolute, Projects:Go}", links[0])
	}
	if links[1].Rel != index.RelRelative || links[1].Names != "Rust" {
		t.Errorf("links[1] = %+v, want {RelRelative, Rust}", links[1])
	}
}

func TestParse_ExtractsDedupedTags(t *testing.T) {
	p := New()
	tree, err := p.Parse([]byte("@golang content mentioning @golang again and @concurrency"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tags := tree.Tags()
	if len(tags) != 2 {
		t.Fatalf("Tags() = %v, want [golang concurrency]", tags)
	}
	seen := map[string]bool{}
	for _, tag := range tags {
		seen[tag] = true
	}
	if !seen["golang"] || !seen["concurrency"] {
		t.Errorf("Tags() = %v, missing an expected tag", tags)
	}
}

func TestParse_EmptyContentYieldsNoLinksOrTags(t *testing.T) {
	p := New()
	tree, err := p.Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tree.Links()) != 0 || len(tree.Tags()) != 0 {
		t.Errorf("expected no links or tags for empty content, got links=%v tags=%v", tree.Links(), tree.Tags())
	}
}

func TestParse_IgnoresEmptyLinkTarget(t *testing.T) {
	p := New()
	tree, err := p.Parse([]byte("a stray [[]] link marker"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tree.Links()) != 0 {
		t.Errorf("expected an empty [[]] to be skipped, got %v", tree.Links())
	}
}
