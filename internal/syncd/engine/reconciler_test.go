package engine

import (
	"bytes"
	"context"
	"os"
	"testing"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/fingerprint"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// seedRemoteFile loads a file into the fake store and returns the wire
// manifest a sync round would report for it.
func seedRemoteFile(remote *fakeRemote, fileID, relPath string, data []byte, chunkSize int) dto.SyncFileInfo {
	info := dto.SyncFileInfo{
		FileID:   fileID,
		FilePath: relPath,
		FileName: relPath,
		FolderID: "root",
		FileHash: fingerprint.Bytes(data),
		Size:     int64(len(data)),
	}
	for i := 0; i*chunkSize < len(data); i++ {
		end := (i + 1) * chunkSize
		if end > len(data) {
			end = len(data)
		}
		part := data[i*chunkSize : end]
		fp := fingerprint.Bytes(part)
		remote.objects[fp] = append([]byte(nil), part...)
		info.Chunks = append(info.Chunks, dto.SyncChunkInfo{
			ChunkID:     uuid.NewString(),
			PartNumber:  i,
			Fingerprint: fp,
			Size:        int64(len(part)),
		})
	}
	return info
}

func TestSyncRoundUpToDate(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	remote.syncResp = &dto.SyncResponse{UpToDate: true, LastSyncTime: "2026-08-29T12:00:00Z"}

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.True(t, stats.UpToDate)

	cursor, err := db.LastSyncTime()
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.Equal(t, "2026-08-29T12:00:00Z", *cursor)

	// Running again with nothing new changes nothing.
	stats, err = eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.True(t, stats.UpToDate)
}

func TestSyncRoundDownloadsNewFile(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	data := bytes.Repeat([]byte("z"), 2200)
	info := seedRemoteFile(remote, "f-new", "incoming/new.bin", data, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T12:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Applied)
	require.Equal(t, 3, stats.Downloaded)

	got, err := os.ReadFile(eng.AbsPath("incoming/new.bin"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))

	record, err := db.GetFileByPath("incoming/new.bin")
	require.NoError(t, err)
	require.Equal(t, info.FileHash, record.FileHash)

	cursor, err := db.LastSyncTime()
	require.NoError(t, err)
	require.Equal(t, "2026-08-29T12:00:00Z", *cursor)
}

func TestSyncRoundRenameMovesWithoutDownload(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	data := bytes.Repeat([]byte("r"), 2048)
	writeSyncFile(t, eng, "old/name.bin", data)
	result, err := eng.UploadFile(context.Background(), "old/name.bin")
	require.NoError(t, err)

	// Another device renamed the file: same identity and content,
	// different path.
	info := seedRemoteFile(remote, result.FileID, "new/name.bin", data, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T13:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}
	fetchesBefore := remote.fetchCalls

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Renamed)
	require.Equal(t, 0, stats.Downloaded)
	require.Equal(t, fetchesBefore, remote.fetchCalls, "a rename must not fetch chunk bytes")

	require.False(t, fileExists(eng.AbsPath("old/name.bin")))
	got, err := os.ReadFile(eng.AbsPath("new/name.bin"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))
}

func TestSyncRoundSingleChunkChange(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	original := bytes.Repeat([]byte("s"), 3072) // 3 full parts
	writeSyncFile(t, eng, "big.bin", original)
	result, err := eng.UploadFile(context.Background(), "big.bin")
	require.NoError(t, err)

	// Remote changed only the middle part.
	changed := append([]byte(nil), original...)
	copy(changed[1024:2048], bytes.Repeat([]byte("T"), 1024))
	info := seedRemoteFile(remote, result.FileID, "big.bin", changed, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T14:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Applied)
	require.Equal(t, 1, stats.Downloaded, "only the changed part should be fetched")

	got, err := os.ReadFile(eng.AbsPath("big.bin"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(changed, got))
}

func TestSyncRoundUnchangedFileNotRewritten(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	data := []byte("already here")
	writeSyncFile(t, eng, "same.txt", data)
	result, err := eng.UploadFile(context.Background(), "same.txt")
	require.NoError(t, err)

	// Sync reports this device's own upload back to it.
	info := seedRemoteFile(remote, result.FileID, "same.txt", data, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T15:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Unchanged)
	require.Equal(t, 0, stats.Downloaded)
}

func TestSyncRoundFailureKeepsCursor(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	require.NoError(t, db.SetLastSyncTime("2026-08-29T10:00:00Z"))

	// The manifest names a chunk whose bytes are not in the store.
	info := dto.SyncFileInfo{
		FileID:   "f-broken",
		FilePath: "broken.bin",
		FileName: "broken.bin",
		FileHash: "deadbeef",
		Size:     10,
		Chunks: []dto.SyncChunkInfo{
			{ChunkID: "c0", PartNumber: 0, Fingerprint: "missing-fp", Size: 10},
		},
	}
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T16:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}

	_, err := eng.RunSyncRound(context.Background())
	require.Error(t, err)

	cursor, err := db.LastSyncTime()
	require.NoError(t, err)
	require.Equal(t, "2026-08-29T10:00:00Z", *cursor, "failed round must not advance the cursor")
}

func TestSyncRoundPartialFailureIsolation(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	good := seedRemoteFile(remote, "f-good", "good.bin", bytes.Repeat([]byte("g"), 1500), 1024)
	broken := dto.SyncFileInfo{
		FileID:   "f-bad",
		FilePath: "bad.bin",
		FileName: "bad.bin",
		FileHash: "deadbeef",
		Size:     10,
		Chunks: []dto.SyncChunkInfo{
			{ChunkID: "c0", PartNumber: 0, Fingerprint: "missing-fp", Size: 10},
		},
	}
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T18:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{good, broken},
	}

	stats, err := eng.RunSyncRound(context.Background())
	require.Error(t, err, "round with a broken file must fail overall")
	require.Equal(t, 1, stats.Applied, "the healthy file must still be applied")
	require.True(t, fileExists(eng.AbsPath("good.bin")))

	cursor, err := db.LastSyncTime()
	require.NoError(t, err)
	require.Nil(t, cursor, "partial round must not advance the cursor")

	// Replay after the broken manifest is served correctly: the
	// already-applied file costs nothing.
	part := bytes.Repeat([]byte("n"), 10)
	broken = seedRemoteFile(remote, "f-bad", "bad.bin", part, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T18:05:00Z",
		UpdatedFiles: []dto.SyncFileInfo{good, broken},
	}
	fetchesBefore := remote.fetchCalls

	stats, err = eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Unchanged, "replayed healthy file must be a no-op")
	require.Equal(t, 1, stats.Applied)
	require.Equal(t, fetchesBefore+1, remote.fetchCalls, "only the fixed file's chunk moves")

	cursor, err = db.LastSyncTime()
	require.NoError(t, err)
	require.Equal(t, "2026-08-29T18:05:00Z", *cursor)
}

func TestSyncRoundRemoteWinsOverLocalEdit(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	data := []byte("server copy")
	writeSyncFile(t, eng, "conflict.txt", data)
	result, err := eng.UploadFile(context.Background(), "conflict.txt")
	require.NoError(t, err)

	// Local edit that never got uploaded.
	writeSyncFile(t, eng, "conflict.txt", []byte("local scribbles"))

	remoteData := []byte("remote truth, longer than before")
	info := seedRemoteFile(remote, result.FileID, "conflict.txt", remoteData, 1024)
	remote.syncResp = &dto.SyncResponse{
		LastSyncTime: "2026-08-29T17:00:00Z",
		UpdatedFiles: []dto.SyncFileInfo{info},
	}

	stats, err := eng.RunSyncRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Applied)

	got, err := os.ReadFile(eng.AbsPath("conflict.txt"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(remoteData, got), "remote content wins")
}
