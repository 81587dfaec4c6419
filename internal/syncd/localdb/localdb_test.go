package localdb

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFileUpsertAndLookup(t *testing.T) {
	db := openTestDB(t)

	file := FileRecord{
		FileID:   "f1",
		FilePath: "docs/a.txt",
		FileName: "a.txt",
		FileType: "txt",
		FolderID: "d1",
		FileHash: "h1",
		Size:     10,
	}
	if err := db.UpsertFile(file); err != nil {
		t.Fatal(err)
	}

	byPath, err := db.GetFileByPath("docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if byPath.FileID != "f1" || byPath.FileHash != "h1" {
		t.Fatalf("unexpected record: %+v", byPath)
	}

	file.FileHash = "h2"
	file.Size = 20
	if err := db.UpsertFile(file); err != nil {
		t.Fatal(err)
	}
	byID, err := db.GetFileByID("f1")
	if err != nil {
		t.Fatal(err)
	}
	if byID.FileHash != "h2" || byID.Size != 20 {
		t.Fatalf("update not applied: %+v", byID)
	}
}

func TestFileUpsertRebindsPath(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertFile(FileRecord{FileID: "old", FilePath: "a.txt", FileName: "a.txt"}); err != nil {
		t.Fatal(err)
	}
	// Same path arrives under a new identity.
	if err := db.UpsertFile(FileRecord{FileID: "new", FilePath: "a.txt", FileName: "a.txt"}); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFileByPath("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.FileID != "new" {
		t.Fatalf("expect path bound to new id, got %s", got.FileID)
	}
	if _, err := db.GetFileByID("old"); !IsNotFound(err) {
		t.Fatalf("stale identity should be gone, got %v", err)
	}
}

func TestReplaceChunksAtomically(t *testing.T) {
	db := openTestDB(t)

	first := []ChunkRecord{
		{FileID: "f1", PartNumber: 0, ChunkID: "c0", Fingerprint: "fp0", Size: 5},
		{FileID: "f1", PartNumber: 1, ChunkID: "c1", Fingerprint: "fp1", Size: 5},
	}
	if err := db.ReplaceChunks("f1", first); err != nil {
		t.Fatal(err)
	}

	second := []ChunkRecord{
		{FileID: "f1", PartNumber: 0, ChunkID: "c2", Fingerprint: "fp2", Size: 7},
	}
	if err := db.ReplaceChunks("f1", second); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChunks("f1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expect 1 chunk after replace, got %d", len(got))
	}
	if got[0].Fingerprint != "fp2" || got[0].Size != 7 {
		t.Fatalf("unexpected chunk: %+v", got[0])
	}
}

func TestChunksOrderedByPart(t *testing.T) {
	db := openTestDB(t)

	chunks := []ChunkRecord{
		{FileID: "f1", PartNumber: 2, ChunkID: "c2", Fingerprint: "fp2"},
		{FileID: "f1", PartNumber: 0, ChunkID: "c0", Fingerprint: "fp0"},
		{FileID: "f1", PartNumber: 1, ChunkID: "c1", Fingerprint: "fp1"},
	}
	if err := db.ReplaceChunks("f1", chunks); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetChunks("f1")
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range got {
		if c.PartNumber != i {
			t.Fatalf("position %d holds part %d", i, c.PartNumber)
		}
	}
}

func TestSyncCursor(t *testing.T) {
	db := openTestDB(t)

	cursor, err := db.LastSyncTime()
	if err != nil {
		t.Fatal(err)
	}
	if cursor != nil {
		t.Fatalf("fresh db should have nil cursor, got %q", *cursor)
	}

	if err := db.SetLastSyncTime("2026-08-29T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetLastSyncTime("2026-08-29T11:00:00Z"); err != nil {
		t.Fatal(err)
	}

	cursor, err = db.LastSyncTime()
	if err != nil {
		t.Fatal(err)
	}
	if cursor == nil || *cursor != "2026-08-29T11:00:00Z" {
		t.Fatalf("unexpected cursor: %v", cursor)
	}
}

func TestDeleteFileRemovesChunks(t *testing.T) {
	db := openTestDB(t)

	if err := db.UpsertFile(FileRecord{FileID: "f1", FilePath: "a", FileName: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceChunks("f1", []ChunkRecord{
		{FileID: "f1", PartNumber: 0, ChunkID: "c0", Fingerprint: "fp0"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteFile("f1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetFileByID("f1"); !IsNotFound(err) {
		t.Fatalf("file should be gone, got %v", err)
	}
	chunks, err := db.GetChunks("f1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Fatalf("chunks should be gone, got %d", len(chunks))
	}
}

func TestFolderUpsert(t *testing.T) {
	db := openTestDB(t)

	parent := "root"
	if err := db.UpsertFolder(FolderRecord{FolderID: "root", FolderPath: ".", FolderName: "."}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertFolder(FolderRecord{
		FolderID: "d1", FolderPath: "docs", FolderName: "docs", ParentFolderID: &parent,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFolderByPath("docs")
	if err != nil {
		t.Fatal(err)
	}
	if got.FolderID != "d1" || got.ParentFolderID == nil || *got.ParentFolderID != "root" {
		t.Fatalf("unexpected folder: %+v", got)
	}
}
