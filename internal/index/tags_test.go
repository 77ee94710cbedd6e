package index

import (
	"context"
	"testing"
)

func TestTagsIndexer_IndexedOnUpdateAndClearedOnRemoval(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("learning @golang and @concurrency"))

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	page, err := idx.LookupByPagename("Projects:Go")
	if err != nil {
		t.Fatalf("LookupByPagename: %v", err)
	}

	var gotIDs []int64
	err = idx.conn.WithRead(context.Background(), func(db DBTX) error {
		ids, err := idx.tags.LookupByTag(db, "golang")
		gotIDs = ids
		return err
	})
	if err != nil {
		t.Fatalf("LookupByTag: %v", err)
	}
	if len(gotIDs) != 1 || gotIDs[0] != page.ID {
		t.Errorf("LookupByTag(golang) = %v, want [%d]", gotIDs, page.ID)
	}

	layout.PutFile("Projects:Go", []byte("no tags anymore"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update after edit: %v", err)
	}

	err = idx.conn.WithRead(context.Background(), func(db DBTX) error {
		ids, err := idx.tags.LookupByTag(db, "golang")
		gotIDs = ids
		return err
	})
	if err != nil {
		t.Fatalf("LookupByTag after edit: %v", err)
	}
	if len(gotIDs) != 0 {
		t.Errorf("expected no pages tagged golang after the edit, got %v", gotIDs)
	}
}

func TestTagsIndexer_RemovedOnPageDeletion(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("@golang"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := idx.OnDeletePage("Projects:Go"); err != nil {
		t.Fatalf("OnDeletePage: %v", err)
	}

	var gotIDs []int64
	err := idx.conn.WithRead(context.Background(), func(db DBTX) error {
		ids, err := idx.tags.LookupByTag(db, "golang")
		gotIDs = ids
		return err
	})
	if err != nil {
		t.Fatalf("LookupByTag: %v", err)
	}
	if len(gotIDs) != 0 {
		t.Errorf("expected no tags to survive page deletion, got %v", gotIDs)
	}
}
