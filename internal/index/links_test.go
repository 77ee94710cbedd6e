package index

import (
	"context"
	"testing"
)

func TestLinksIndexer_ResolvesAgainstAnExistingTarget(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Rust", []byte("rust content"))
	layout.PutFile("Projects:Go", []byte("see [[Projects:Rust]]"))

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	target, err := idx.LookupByPagename("Projects:Rust")
	if err != nil {
		t.Fatalf("LookupByPagename(Projects:Rust): %v", err)
	}

	var links []*Link
	err = idx.conn.WithRead(context.Background(), func(db DBTX) error {
		ids, err := idx.links.LookupIncoming(db, target.ID)
		links = ids
		return err
	})
	if err != nil {
		t.Fatalf("LookupIncoming: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("LookupIncoming(Rust) = %v, want exactly one incoming link", links)
	}
}

func TestLinksIndexer_RelativeLinkLeavesExistingSiblingResolved(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("see [[Rust]]"))
	layout.PutFile("Projects:Rust", []byte("rust content"))

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Link names are looked up from the notebook root, so [[Rust]] from
	// Projects:Go gets a top-level "Rust" placeholder rather than the
	// sibling. The sibling Projects:Rust has content of its own and
	// must not be left PAGE_EXISTS_UNCERTAIN by the link pass.
	page, err := idx.LookupByPagename("Projects:Rust")
	if err != nil {
		t.Fatalf("LookupByPagename(Projects:Rust): %v", err)
	}
	if page.PageExists == PageExistsUncertain {
		t.Error("resolved link target must not stay page_exists=uncertain")
	}
}

func TestLinksIndexer_CleansUpPlaceholderWithNoIncomingLinksOrContent(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("see [[Projects:Rust]]"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Rust"); err != nil {
		t.Fatalf("expected placeholder to exist before the link is removed: %v", err)
	}

	layout.PutFile("Projects:Go", []byte("no links"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update after removing the link: %v", err)
	}

	if _, err := idx.LookupByPagename("Projects:Rust"); err == nil {
		t.Error("placeholder with zero incoming links should be cleaned up")
	}
}
