package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/api"
	"FireBox/internal/syncd/fingerprint"
	"FireBox/internal/syncd/localdb"

	"github.com/google/uuid"
)

// fakeRemote implements Remote in memory: a fingerprint-addressed
// object map plus committed manifests, with call counters so tests can
// assert how much actually moved over the wire.
type fakeRemote struct {
	mu      sync.Mutex
	objects map[string][]byte
	files   map[string]dto.SyncFileInfo

	negotiations int
	putCalls     int
	fetchCalls   int
	confirms     int

	// How many PUTs per fingerprint to reject as an expired handle;
	// -1 rejects every attempt.
	expirePut map[string]int

	syncResp *dto.SyncResponse
	syncErr  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		objects:   make(map[string][]byte),
		files:     make(map[string]dto.SyncFileInfo),
		expirePut: make(map[string]int),
	}
}

func (f *fakeRemote) UpsertFolder(ctx context.Context, req dto.FolderRequest) error {
	return nil
}

func (f *fakeRemote) Negotiate(ctx context.Context, req dto.NegotiateRequest) (*dto.NegotiateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negotiations++
	resp := &dto.NegotiateResponse{
		FileID:   req.FileID,
		UploadID: uuid.NewString(),
	}
	for i, fp := range req.Fingerprints {
		grant := dto.PartGrant{
			PartNumber:  i,
			ChunkID:     uuid.NewString(),
			Fingerprint: fp,
		}
		if _, ok := f.objects[fp]; ok {
			grant.Exists = true
		} else {
			grant.UploadURL = "put://" + fp
		}
		resp.Parts = append(resp.Parts, grant)
	}
	return resp, nil
}

func (f *fakeRemote) Confirm(ctx context.Context, req dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms++
	for _, c := range req.Chunks {
		if _, ok := f.objects[c.Fingerprint]; !ok {
			return nil, fmt.Errorf("chunk bytes missing for part %d", c.PartNumber)
		}
	}
	return &dto.ConfirmResponse{FileID: req.FileID, ConfirmedChunks: len(req.Chunks), Success: true}, nil
}

func (f *fakeRemote) DownloadURLs(ctx context.Context, req dto.DownloadRequest) (*dto.DownloadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &dto.DownloadResponse{FileID: req.FileID, Success: true}
	for _, c := range req.Chunks {
		if _, ok := f.objects[c.Fingerprint]; !ok {
			return nil, fmt.Errorf("chunk object not in store: %s", c.Fingerprint)
		}
		resp.URLs = append(resp.URLs, dto.DownloadURLInfo{
			ChunkID:     c.ChunkID,
			PartNumber:  c.PartNumber,
			Fingerprint: c.Fingerprint,
			DownloadURL: "get://" + c.Fingerprint,
		})
	}
	return resp, nil
}

func (f *fakeRemote) Sync(ctx context.Context, req dto.SyncRequest) (*dto.SyncResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	if f.syncResp != nil {
		return f.syncResp, nil
	}
	return &dto.SyncResponse{UpToDate: true, LastSyncTime: "2026-08-29T00:00:00Z"}, nil
}

func (f *fakeRemote) PutChunk(ctx context.Context, uploadURL string, data []byte) error {
	fp := strings.TrimPrefix(uploadURL, "put://")
	if fingerprint.Bytes(data) != fp {
		return fmt.Errorf("payload does not match handle %s", fp)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if n := f.expirePut[fp]; n != 0 {
		if n > 0 {
			f.expirePut[fp] = n - 1
		}
		return &api.StatusError{StatusCode: http.StatusForbidden, Body: "Request has expired"}
	}
	f.objects[fp] = append([]byte(nil), data...)
	return nil
}

func (f *fakeRemote) FetchChunk(ctx context.Context, downloadURL, expectFingerprint string) ([]byte, error) {
	fp := strings.TrimPrefix(downloadURL, "get://")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	data, ok := f.objects[fp]
	if !ok || fp != expectFingerprint {
		return nil, fmt.Errorf("no object for %s", fp)
	}
	return append([]byte(nil), data...), nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeRemote, *localdb.DB) {
	t.Helper()
	root := t.TempDir()
	db, err := localdb.Open(filepath.Join(root, "state", "local.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	remote := newFakeRemote()
	eng := New(remote, db, Options{
		SyncDir:             filepath.Join(root, "sync"),
		CacheDir:            filepath.Join(root, "cache"),
		ChunkSize:           1024,
		UploadConcurrency:   2,
		DownloadConcurrency: 2,
	})
	if err := os.MkdirAll(eng.opts.SyncDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return eng, remote, db
}

func writeSyncFile(t *testing.T, eng *Engine, relPath string, data []byte) {
	t.Helper()
	abs := eng.AbsPath(relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
