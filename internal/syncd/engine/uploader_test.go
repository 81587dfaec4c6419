package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"FireBox/internal/syncd/fingerprint"
	"FireBox/internal/syncd/localdb"

	"github.com/stretchr/testify/require"
)

func TestUploadFreshFile(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	data := bytes.Repeat([]byte("a"), 2500) // 3 parts at 1024
	writeSyncFile(t, eng, "docs/report.txt", data)

	result, err := eng.UploadFile(context.Background(), "docs/report.txt")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.False(t, result.Skipped)
	require.Equal(t, 3, result.Uploaded)
	require.Equal(t, 0, result.Deduped)
	require.Equal(t, 3, remote.putCalls)
	require.Equal(t, 1, remote.confirms)

	record, err := db.GetFileByPath("docs/report.txt")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), record.Size)

	chunks, err := db.GetChunks(record.FileID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		require.Equal(t, i, c.PartNumber)
	}
}

func TestUploadFullDedup(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	data := bytes.Repeat([]byte("b"), 3000)
	writeSyncFile(t, eng, "dup.bin", data)

	// Another device already pushed identical bytes.
	_, err := eng.UploadFile(context.Background(), "dup.bin")
	require.NoError(t, err)
	putsAfterFirst := remote.putCalls

	writeSyncFile(t, eng, "copy.bin", data)
	result, err := eng.UploadFile(context.Background(), "copy.bin")
	require.NoError(t, err)
	require.Equal(t, 0, result.Uploaded)
	require.Equal(t, 3, result.Deduped)
	require.Equal(t, putsAfterFirst, remote.putCalls, "no bytes should move for duplicated content")
}

func TestUploadUnchangedIsNoOp(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	writeSyncFile(t, eng, "same.txt", []byte("stable content"))

	first, err := eng.UploadFile(context.Background(), "same.txt")
	require.NoError(t, err)
	require.False(t, first.Skipped)
	negotiations := remote.negotiations

	second, err := eng.UploadFile(context.Background(), "same.txt")
	require.NoError(t, err)
	require.True(t, second.Skipped)
	require.Equal(t, first.FileID, second.FileID)
	require.Equal(t, negotiations, remote.negotiations, "unchanged file must not negotiate")
}

func TestUploadPartialDedup(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	part := bytes.Repeat([]byte("p"), 1024)
	writeSyncFile(t, eng, "one.bin", part)
	_, err := eng.UploadFile(context.Background(), "one.bin")
	require.NoError(t, err)

	// Second file shares its first part with the one already stored.
	combined := append(append([]byte(nil), part...), bytes.Repeat([]byte("q"), 1024)...)
	writeSyncFile(t, eng, "two.bin", combined)
	result, err := eng.UploadFile(context.Background(), "two.bin")
	require.NoError(t, err)
	require.Equal(t, 1, result.Deduped)
	require.Equal(t, 1, result.Uploaded)
	require.Equal(t, 2, remote.putCalls, "shared part must not move twice")
}

func TestUploadModifiedFileKeepsIdentity(t *testing.T) {
	eng, _, db := newTestEngine(t)
	writeSyncFile(t, eng, "doc.txt", []byte("version one"))
	first, err := eng.UploadFile(context.Background(), "doc.txt")
	require.NoError(t, err)

	writeSyncFile(t, eng, "doc.txt", []byte("version two, changed"))
	second, err := eng.UploadFile(context.Background(), "doc.txt")
	require.NoError(t, err)
	require.Equal(t, first.FileID, second.FileID, "same path keeps its file id")

	record, err := db.GetFileByPath("doc.txt")
	require.NoError(t, err)
	require.Equal(t, int64(len("version two, changed")), record.Size)
}

func TestUploadZeroByteFile(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	writeSyncFile(t, eng, "empty.txt", nil)

	result, err := eng.UploadFile(context.Background(), "empty.txt")
	require.NoError(t, err)
	require.Equal(t, 0, result.Uploaded)
	require.Equal(t, 0, remote.putCalls)

	record, err := db.GetFileByPath("empty.txt")
	require.NoError(t, err)
	chunks, err := db.GetChunks(record.FileID)
	require.NoError(t, err)
	require.Empty(t, chunks, "zero-byte file has an empty manifest")
}

func TestUploadRenegotiatesExpiredHandles(t *testing.T) {
	eng, remote, db := newTestEngine(t)
	data := make([]byte, 2500) // 3 distinct parts at 1024
	for i := range data {
		data[i] = byte(i % 251)
	}
	writeSyncFile(t, eng, "retry/slow.bin", data)

	// The middle part's handle lapses mid-transfer; the other two land.
	remote.expirePut[fingerprint.Bytes(data[1024:2048])] = 1

	result, err := eng.UploadFile(context.Background(), "retry/slow.bin")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.Equal(t, 2, remote.negotiations, "a lapsed handle forces one re-negotiation")
	require.Equal(t, 4, remote.putCalls, "only the unacknowledged part moves again")
	require.Equal(t, 3, result.Uploaded)
	require.Equal(t, 0, result.Deduped, "parts this upload pushed are not dedup hits")
	require.Equal(t, 1, remote.confirms)

	// Parts pushed before the lapse stay recorded as uploaded even
	// though the second negotiation reports them as already stored.
	for part := 0; part < 3; part++ {
		require.Equal(t, PartUploaded, result.Parts[part])
	}

	record, err := db.GetFileByPath("retry/slow.bin")
	require.NoError(t, err)
	chunks, err := db.GetChunks(record.FileID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
}

func TestUploadGivesUpWhenHandlesKeepExpiring(t *testing.T) {
	eng, remote, _ := newTestEngine(t)
	data := bytes.Repeat([]byte("x"), 512)
	writeSyncFile(t, eng, "never.bin", data)

	// Every handle the server issues lapses before the PUT.
	remote.expirePut[fingerprint.Bytes(data)] = -1

	_, err := eng.UploadFile(context.Background(), "never.bin")
	require.Error(t, err)
	require.Contains(t, err.Error(), "kept expiring")
	require.Equal(t, 3, remote.negotiations)
	require.Equal(t, 0, remote.confirms, "nothing is confirmed without stored bytes")
}

func TestUploadSkipsWhenPathBusy(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	writeSyncFile(t, eng, "busy.txt", []byte("data"))

	require.True(t, eng.locks.TryAcquire("busy.txt"))
	defer eng.locks.Release("busy.txt")

	_, err := eng.UploadFile(context.Background(), "busy.txt")
	require.True(t, errors.Is(err, ErrUploadInFlight))
}

func TestForgetFileDropsLocalRows(t *testing.T) {
	eng, _, db := newTestEngine(t)
	data := bytes.Repeat([]byte("d"), 1500)
	writeSyncFile(t, eng, "gone.txt", data)

	_, err := eng.UploadFile(context.Background(), "gone.txt")
	require.NoError(t, err)

	require.NoError(t, os.Remove(eng.AbsPath("gone.txt")))
	require.NoError(t, eng.ForgetFile("gone.txt"))

	_, err = db.GetFileByPath("gone.txt")
	require.True(t, localdb.IsNotFound(err))

	// Forgetting a path that was never tracked is a no-op.
	require.NoError(t, eng.ForgetFile("never-there.txt"))
}
