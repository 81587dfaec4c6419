package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/fingerprint"
	"FireBox/internal/syncd/localdb"

	"golang.org/x/sync/errgroup"
)

// SyncStats summarizes one completed sync round.
type SyncStats struct {
	UpToDate   bool
	Applied    int
	Renamed    int
	Unchanged  int
	Downloaded int
	NextCursor string
}

// RunSyncRound performs one poll-and-apply cycle: ask the server what
// changed since the stored cursor, apply every reported file, then and
// only then advance the cursor. A failed or partial round leaves the
// cursor untouched so the next round replays it; applying a manifest
// twice is a no-op.
func (e *Engine) RunSyncRound(ctx context.Context) (*SyncStats, error) {
	cursor, err := e.db.LastSyncTime()
	if err != nil {
		return nil, err
	}

	resp, err := e.remote.Sync(ctx, dto.SyncRequest{LastSyncTime: cursor})
	if err != nil {
		return nil, err
	}

	stats := &SyncStats{NextCursor: resp.LastSyncTime}
	if resp.UpToDate {
		stats.UpToDate = true
		if err := e.db.SetLastSyncTime(resp.LastSyncTime); err != nil {
			return nil, err
		}
		return stats, nil
	}

	// One file's failure must not block the others, but any failure
	// keeps the cursor where it was so the next round replays the
	// delta. Files already applied come back unchanged and cost
	// nothing on replay.
	var errs []error
	for _, file := range resp.UpdatedFiles {
		if err := e.applyRemoteFile(ctx, file, stats); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", file.FilePath, err))
		}
	}
	if len(errs) > 0 {
		return stats, errors.Join(errs...)
	}

	if err := e.db.SetLastSyncTime(resp.LastSyncTime); err != nil {
		return stats, err
	}
	return stats, nil
}

// applyRemoteFile makes the local disk and state match one remote
// manifest. Remote wins: whatever is at the path locally is replaced.
func (e *Engine) applyRemoteFile(ctx context.Context, info dto.SyncFileInfo, stats *SyncStats) error {
	relPath := info.FilePath
	if !e.locks.TryAcquire(relPath) {
		return ErrUploadInFlight
	}
	defer e.locks.Release(relPath)

	// Path first, file_id as the rename fallback.
	local, err := e.db.GetFileByPath(relPath)
	if err != nil && !localdb.IsNotFound(err) {
		return err
	}
	var renamedFrom string
	if local == nil {
		byID, err := e.db.GetFileByID(info.FileID)
		if err != nil && !localdb.IsNotFound(err) {
			return err
		}
		if byID != nil && byID.FilePath != relPath {
			local = byID
			renamedFrom = byID.FilePath
		}
	}

	absPath := e.AbsPath(relPath)
	upToDate := local != nil && local.FileHash == info.FileHash && local.FilePath == relPath && fileExists(absPath)
	if upToDate {
		stats.Unchanged++
		return e.recordRemoteFile(info)
	}

	// A pure rename moves bytes already on disk; nothing is fetched.
	if renamedFrom != "" && local.FileHash == info.FileHash {
		oldAbs := e.AbsPath(renamedFrom)
		if fileExists(oldAbs) {
			if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
				return err
			}
			if err := os.Rename(oldAbs, absPath); err != nil {
				return err
			}
			stats.Renamed++
			return e.recordRemoteFile(info)
		}
	}

	downloaded, err := e.materialize(ctx, info, local, renamedFrom)
	if err != nil {
		return err
	}
	if renamedFrom != "" {
		if old := e.AbsPath(renamedFrom); fileExists(old) {
			_ = os.Remove(old)
		}
	}
	stats.Applied++
	stats.Downloaded += downloaded
	return e.recordRemoteFile(info)
}

// materialize rebuilds the file at info.FilePath from the remote
// manifest, sourcing each part from the chunk cache, from matching
// parts of the file already on disk, and only then from the store.
func (e *Engine) materialize(ctx context.Context, info dto.SyncFileInfo, local *localdb.FileRecord, renamedFrom string) (int, error) {
	store := newRoundStore(e.cache)

	localPath := info.FilePath
	if renamedFrom != "" {
		localPath = renamedFrom
	}
	e.harvestLocalParts(localPath, local, info, store)

	var need []dto.DownloadChunkInfo
	seen := make(map[string]struct{})
	for _, c := range info.Chunks {
		if _, ok := seen[c.Fingerprint]; ok {
			continue
		}
		seen[c.Fingerprint] = struct{}{}
		if store.Has(c.Fingerprint) {
			continue
		}
		need = append(need, dto.DownloadChunkInfo{
			ChunkID:     c.ChunkID,
			PartNumber:  c.PartNumber,
			Fingerprint: c.Fingerprint,
		})
	}

	downloaded := 0
	if len(need) > 0 {
		resp, err := e.remote.DownloadURLs(ctx, dto.DownloadRequest{FileID: info.FileID, Chunks: need})
		if err != nil {
			return 0, err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.DownloadConcurrency)
		for _, u := range resp.URLs {
			u := u
			g.Go(func() error {
				data, err := e.remote.FetchChunk(gctx, u.DownloadURL, u.Fingerprint)
				if err != nil {
					return err
				}
				store.Put(u.Fingerprint, data)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
		downloaded = len(need)
	}

	err := Reconstruct(e.AbsPath(info.FilePath), len(info.Chunks), info.FileHash, func(part int) ([]byte, error) {
		fp := info.Chunks[part].Fingerprint
		data, ok := store.Get(fp)
		if !ok {
			return nil, fmt.Errorf("no source for fingerprint %s", fp)
		}
		return data, nil
	})
	if err != nil {
		return downloaded, err
	}
	return downloaded, nil
}

// harvestLocalParts copies still-valid parts of the existing local
// file into the round store so they need no download. Every candidate
// is re-read and verified; a locally modified file simply yields
// nothing.
func (e *Engine) harvestLocalParts(relPath string, local *localdb.FileRecord, info dto.SyncFileInfo, store *roundStore) {
	if local == nil {
		return
	}
	absPath := e.AbsPath(relPath)
	f, err := os.Open(absPath)
	if err != nil {
		return
	}
	defer f.Close()

	oldChunks, err := e.db.GetChunks(local.FileID)
	if err != nil {
		return
	}
	wanted := make(map[string]struct{}, len(info.Chunks))
	for _, c := range info.Chunks {
		wanted[c.Fingerprint] = struct{}{}
	}

	var offset int64
	for _, old := range oldChunks {
		start := offset
		offset += old.Size
		if _, ok := wanted[old.Fingerprint]; !ok {
			continue
		}
		if store.Has(old.Fingerprint) {
			continue
		}
		buf := make([]byte, old.Size)
		if _, err := f.ReadAt(buf, start); err != nil {
			continue
		}
		if fingerprint.Bytes(buf) != old.Fingerprint {
			continue
		}
		store.Put(old.Fingerprint, buf)
	}
}

func (e *Engine) recordRemoteFile(info dto.SyncFileInfo) error {
	if err := e.db.UpsertFile(localdb.FileRecord{
		FileID:   info.FileID,
		FilePath: info.FilePath,
		FileName: info.FileName,
		FileType: info.FileType,
		FolderID: info.FolderID,
		FileHash: info.FileHash,
		Size:     info.Size,
	}); err != nil {
		return err
	}
	records := make([]localdb.ChunkRecord, len(info.Chunks))
	for i, c := range info.Chunks {
		records[i] = localdb.ChunkRecord{
			FileID:      info.FileID,
			PartNumber:  c.PartNumber,
			ChunkID:     c.ChunkID,
			Fingerprint: c.Fingerprint,
			Size:        c.Size,
		}
	}
	return e.db.ReplaceChunks(info.FileID, records)
}

// PruneChunkCache drops cached chunks no tracked file references.
func (e *Engine) PruneChunkCache() {
	if err := e.cache.Prune(e.db); err != nil {
		log.Printf("chunk cache prune failed: %v", err)
	}
}

// roundStore holds chunk bytes gathered during one apply. Bytes land
// in the persistent cache when one is configured and in memory
// otherwise, so reconstruction always finds what was fetched.
type roundStore struct {
	cache *ChunkCache
	mu    sync.Mutex
	mem   map[string][]byte
}

func newRoundStore(cache *ChunkCache) *roundStore {
	return &roundStore{cache: cache, mem: make(map[string][]byte)}
}

func (s *roundStore) Has(fp string) bool {
	s.mu.Lock()
	_, ok := s.mem[fp]
	s.mu.Unlock()
	if ok {
		return true
	}
	_, ok = s.cache.Get(fp)
	return ok
}

func (s *roundStore) Get(fp string) ([]byte, bool) {
	s.mu.Lock()
	data, ok := s.mem[fp]
	s.mu.Unlock()
	if ok {
		return data, true
	}
	return s.cache.Get(fp)
}

func (s *roundStore) Put(fp string, data []byte) {
	s.cache.Put(fp, data)
	if _, ok := s.cache.Get(fp); ok {
		return
	}
	s.mu.Lock()
	s.mem[fp] = data
	s.mu.Unlock()
}
