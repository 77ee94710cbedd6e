package idxstore

import "testing"

func TestMemoryLayout_ListChildrenDedupesFileAndFolderEntries(t *testing.T) {
	l := NewMemoryLayout()
	l.PutFile("Projects:Go", []byte("go content"))
	l.PutFolder("Projects:Go")
	l.PutFile("Projects:Rust", []byte("rust content"))

	names, err := l.ListChildren("Projects")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
	}
	if seen["Go"] != 1 || seen["Rust"] != 1 {
		t.Errorf("ListChildren(Projects) = %v, want one entry each for Go and Rust", names)
	}
}

func TestMemoryLayout_MTimeIsStableAcrossCalls(t *testing.T) {
	l := NewMemoryLayout()
	l.PutFile("Projects:Go", []byte("go content"))

	file, _, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	first, err := file.MTime()
	if err != nil {
		t.Fatalf("MTime: %v", err)
	}
	second, err := file.MTime()
	if err != nil {
		t.Fatalf("MTime: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("MTime() returned %v then %v on the same node", first, second)
	}
}

func TestMemoryLayout_MapPageReturnsTheSameNodeAcrossCalls(t *testing.T) {
	l := NewMemoryLayout()
	l.PutFile("Projects:Go", []byte("go content"))
	l.PutFolder("Projects")

	file1, folder1, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	mtime1, _ := file1.MTime()

	file2, folder2, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	mtime2, _ := file2.MTime()

	if !mtime1.Equal(mtime2) {
		t.Errorf("MapPage(%q) mtime changed between calls with no intervening write: %v then %v", "Projects:Go", mtime1, mtime2)
	}

	folderMtime1, _ := folder1.MTime()
	folderMtime2, _ := folder2.MTime()
	if !folderMtime1.Equal(folderMtime2) {
		t.Errorf("folder node mtime changed between calls with no intervening write")
	}
}

func TestMemoryLayout_PutFileAfterMapPageTicksTheClock(t *testing.T) {
	l := NewMemoryLayout()
	l.PutFile("Projects:Go", []byte("v1"))

	file1, _, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	mtime1, _ := file1.MTime()

	l.PutFile("Projects:Go", []byte("v2"))

	file2, _, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	mtime2, _ := file2.MTime()

	if !mtime2.After(mtime1) {
		t.Errorf("expected mtime to advance after PutFile changed content, got %v then %v", mtime1, mtime2)
	}
}

func TestMemoryLayout_RemoveFileLeavesFolderEntryIntact(t *testing.T) {
	l := NewMemoryLayout()
	l.PutFile("Projects:Go", []byte("go content"))
	l.PutFolder("Projects:Go")

	l.RemoveFile("Projects:Go")

	file, folder, err := l.MapPage("Projects:Go")
	if err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	if file.Exists() {
		t.Error("expected the file to be gone after RemoveFile")
	}
	if !folder.Exists() {
		t.Error("expected the folder entry to survive RemoveFile")
	}
}
