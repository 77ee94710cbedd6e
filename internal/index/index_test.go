package index

import (
	"testing"

	"github.com/notewik/noteindex/internal/idxstore"
)

func newTestIndex(t *testing.T) (*Index, *idxstore.MemoryLayout) {
	t.Helper()
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { conn.Disconnect() })

	layout := idxstore.NewMemoryLayout()
	idx, err := New(conn, layout)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx, layout
}

func TestUpdate_ColdScan(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects", []byte("intro"))
	layout.PutFile("Projects:Go", []byte("about go, see [[Projects:Rust]]"))
	layout.PutFile("Projects:Rust", []byte("about rust"))

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	for _, path := range []string{"Projects", "Projects:Go", "Projects:Rust"} {
		page, err := idx.LookupByPagename(path)
		if err != nil {
			t.Fatalf("LookupByPagename(%q): %v", path, err)
		}
		if page.PageExists != PageExistsHasContent {
			t.Errorf("%s: page_exists = %v, want has_content", path, page.PageExists)
		}
	}

	uptodate, err := idx.ProbablyUptodate()
	if err != nil {
		t.Fatalf("ProbablyUptodate: %v", err)
	}
	if !uptodate {
		t.Error("expected probably_uptodate after a full cold scan")
	}
}

func TestUpdate_PlaceholderCreatedForUnresolvedLink(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("see [[Projects:Rust]] for comparison"))

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	page, err := idx.LookupByPagename("Projects:Rust")
	if err != nil {
		t.Fatalf("expected a placeholder row for the unresolved link target: %v", err)
	}
	if page.PageExists != PageExistsAsLink {
		t.Errorf("page_exists = %v, want as_link", page.PageExists)
	}
}

func TestUpdate_PlaceholderCleanedUpAfterLinkRemoved(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("see [[Projects:Rust]]"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Rust"); err != nil {
		t.Fatalf("expected placeholder before edit: %v", err)
	}

	layout.PutFile("Projects:Go", []byte("no links anymore"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update after edit: %v", err)
	}

	if _, err := idx.LookupByPagename("Projects:Rust"); err == nil {
		t.Error("expected the placeholder to be cleaned up once nothing links to it")
	}
}

func TestOnMovePage_RelocatesSubtree(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	layout.RemoveFile("Projects:Go")
	layout.PutFile("Archive:Go", []byte("go content"))
	if err := idx.OnMovePage("Projects:Go", "Archive:Go"); err != nil {
		t.Fatalf("OnMovePage: %v", err)
	}

	if _, err := idx.LookupByPagename("Archive:Go"); err != nil {
		t.Fatalf("expected new location to be indexed: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Go"); err == nil {
		t.Error("expected old location to be gone after move")
	}
}

func TestOnMovePage_ToDescendantIsShortCircuited(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects", []byte("root content"))
	layout.PutFile("Projects:Sub", []byte("sub content"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Moving a page to its own descendant must not delete-then-rebuild,
	// which would destroy the descendant's own backing content.
	if err := idx.OnMovePage("Projects", "Projects:Sub"); err != nil {
		t.Fatalf("OnMovePage: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Sub"); err != nil {
		t.Fatalf("descendant should survive the short-circuited move: %v", err)
	}
}

func TestOnDeletePage_RemovesWholeSubtree(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects", []byte("root"))
	layout.PutFile("Projects:Go", []byte("go"))
	layout.PutFile("Projects:Go:Sub", []byte("sub"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := idx.OnDeletePage("Projects:Go"); err != nil {
		t.Fatalf("OnDeletePage: %v", err)
	}

	for _, path := range []string{"Projects:Go", "Projects:Go:Sub"} {
		if _, err := idx.LookupByPagename(path); err == nil {
			t.Errorf("%s: expected deletion to remove this page", path)
		}
	}
	if _, err := idx.LookupByPagename("Projects"); err != nil {
		t.Errorf("Projects: should survive its child's deletion: %v", err)
	}
}

func TestOnDeletePage_RefreshesParentChildrenEtag(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects", []byte("root"))
	layout.PutFile("Projects:Go", []byte("go"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	uptodate, err := idx.ProbablyUptodate()
	if err != nil {
		t.Fatalf("ProbablyUptodate: %v", err)
	}
	if !uptodate {
		t.Fatal("expected probably_uptodate after a full cold scan")
	}

	layout.RemoveFile("Projects:Go")
	if err := idx.OnDeletePage("Projects:Go"); err != nil {
		t.Fatalf("OnDeletePage: %v", err)
	}

	// A driven delete, like a driven store, must call UpdateParent so
	// the parent's children_etag already matches the store: no rescan
	// should be required to notice the tree is still up to date.
	uptodate, err = idx.ProbablyUptodate()
	if err != nil {
		t.Fatalf("ProbablyUptodate: %v", err)
	}
	if !uptodate {
		t.Error("expected probably_uptodate to survive a driven delete that refreshes the parent's children_etag")
	}

	parent, err := idx.LookupByPagename("Projects")
	if err != nil {
		t.Fatalf("LookupByPagename(Projects): %v", err)
	}
	_, folder, _ := layout.MapPage("Projects")
	folderMtime, _ := folder.MTime()
	if parent.ChildrenEtag == nil || *parent.ChildrenEtag != folderMtime.String() {
		t.Errorf("Projects children_etag = %v, want the store folder's mtime %q", parent.ChildrenEtag, folderMtime.String())
	}
}

func TestFlush_ResetsIndexButLeavesStoreUntouched(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Go"); err == nil {
		t.Error("expected Flush to drop all indexed rows")
	}

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update after Flush: %v", err)
	}
	if _, err := idx.LookupByPagename("Projects:Go"); err != nil {
		t.Fatalf("expected re-scan after Flush to rebuild the index: %v", err)
	}
}

func TestFlagReindex_QueuesEveryContentPage(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))
	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := idx.FlagReindex(); err != nil {
		t.Fatalf("FlagReindex: %v", err)
	}
	uptodate, err := idx.ProbablyUptodate()
	if err != nil {
		t.Fatalf("ProbablyUptodate: %v", err)
	}
	if uptodate {
		t.Error("expected probably_uptodate to be cleared by FlagReindex")
	}

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update after FlagReindex: %v", err)
	}
	page, err := idx.LookupByPagename("Projects:Go")
	if err != nil {
		t.Fatalf("LookupByPagename: %v", err)
	}
	if page.PageExists != PageExistsHasContent {
		t.Errorf("page_exists = %v, want has_content after reindex", page.PageExists)
	}
}

func TestConnect_ReceivesSignalsOnlyAfterCommit(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))

	var inserted []string
	id := idx.Connect(SignalPageInserted, func(payload any) {
		if page, ok := payload.(*Page); ok {
			inserted = append(inserted, page.Basename)
		}
	})
	defer idx.Disconnect(id)

	if err := idx.Update(""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(inserted) == 0 {
		t.Error("expected page_inserted signals to fire after a successful commit")
	}
}

func TestTouchCurrentPagePlaceholder_PromotesWholeAncestorChain(t *testing.T) {
	idx, _ := newTestIndex(t)
	// TouchPath creates Drafts and Drafts:New as PAGE_EXISTS_UNCERTAIN;
	// SetPageExists(AS_LINK) must promote both, not just the leaf, to
	// preserve the monotone-up-the-tree invariant (§3).
	if err := idx.TouchCurrentPagePlaceholder("Drafts:New"); err != nil {
		t.Fatalf("TouchCurrentPagePlaceholder: %v", err)
	}

	for _, path := range []string{"Drafts", "Drafts:New"} {
		page, err := idx.LookupByPagename(path)
		if err != nil {
			t.Fatalf("LookupByPagename(%q): %v", path, err)
		}
		if page.PageExists != PageExistsAsLink {
			t.Errorf("%s: page_exists = %v, want as_link", path, page.PageExists)
		}
	}
}

func TestStartStopUpdate_WorkerRunsToCompletion(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))

	if err := idx.StartUpdate(""); err != nil {
		t.Fatalf("StartUpdate: %v", err)
	}
	idx.WaitForUpdate(0)

	page, err := idx.LookupByPagename("Projects:Go")
	if err != nil {
		t.Fatalf("LookupByPagename: %v", err)
	}
	if page.PageExists != PageExistsHasContent {
		t.Errorf("page_exists = %v, want has_content", page.PageExists)
	}
}

func TestStartUpdate_SecondCallIsANoOp(t *testing.T) {
	idx, layout := newTestIndex(t)
	layout.PutFile("Projects:Go", []byte("go content"))

	if err := idx.StartUpdate(""); err != nil {
		t.Fatalf("first StartUpdate: %v", err)
	}
	if err := idx.StartUpdate(""); err != nil {
		t.Fatalf("second StartUpdate should be a no-op, not an error: %v", err)
	}
	idx.WaitForUpdate(0)
}
