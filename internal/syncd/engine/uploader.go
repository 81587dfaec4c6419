package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/api"
	"FireBox/internal/syncd/chunker"
	"FireBox/internal/syncd/localdb"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrUploadInFlight means another goroutine is already pushing this
// path. The caller drops the request; a later scan retries.
var ErrUploadInFlight = errors.New("upload already in flight for path")

// Upload lifecycle. An upload moves strictly forward through these
// states; any failure aborts the attempt and the file re-enters at
// StateChunking on the next try.
type UploadState int

const (
	StateChunking UploadState = iota
	StateNegotiating
	StateTransferring
	StateConfirming
	StateDone
)

func (s UploadState) String() string {
	switch s {
	case StateChunking:
		return "chunking"
	case StateNegotiating:
		return "negotiating"
	case StateTransferring:
		return "transferring"
	case StateConfirming:
		return "confirming"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// PartState tracks one part through a transfer.
type PartState int

const (
	PartPending PartState = iota
	PartDeduped
	PartUploaded
	PartFailed
)

// UploadResult summarizes one completed upload. Parts holds the final
// disposition of every part number across all transfer attempts.
type UploadResult struct {
	FileID   string
	State    UploadState
	Skipped  bool
	Deduped  int
	Uploaded int
	Parts    map[int]PartState
}

// renegotiateLimit bounds how many times expired transfer handles are
// refreshed within one upload before giving up.
const renegotiateLimit = 3

// UploadFile pushes one local file to the server: chunk, negotiate,
// transfer the parts the store lacks, confirm the full manifest. An
// unchanged file (same whole-file hash as the last confirmed state) is
// a no-op that touches neither the network nor the store.
func (e *Engine) UploadFile(ctx context.Context, relPath string) (*UploadResult, error) {
	if !e.locks.TryAcquire(relPath) {
		return nil, ErrUploadInFlight
	}
	defer e.locks.Release(relPath)

	absPath := e.AbsPath(relPath)
	manifest, err := chunker.ChunkFile(absPath, e.opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	fileID := uuid.NewString()
	if existing, err := e.db.GetFileByPath(relPath); err == nil {
		if existing.FileHash == manifest.FileHash {
			return &UploadResult{FileID: existing.FileID, State: StateDone, Skipped: true}, nil
		}
		fileID = existing.FileID
	} else if !localdb.IsNotFound(err) {
		return nil, err
	}

	folderID, err := e.ensureFolder(ctx, relPath)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(absPath)
	negReq := dto.NegotiateRequest{
		FileID:       fileID,
		FilePath:     relPath,
		FileName:     fileName,
		FileType:     fileType(fileName),
		FolderID:     folderID,
		FileHash:     manifest.FileHash,
		Size:         manifest.Size,
		ChunkSize:    e.opts.ChunkSize,
		Fingerprints: manifest.Fingerprints(),
	}

	result := &UploadResult{FileID: fileID, Parts: make(map[int]PartState)}
	var grants *dto.NegotiateResponse
	for attempt := 0; ; attempt++ {
		grants, err = e.remote.Negotiate(ctx, negReq)
		if err != nil {
			return nil, err
		}
		result.State = StateTransferring

		expired, uploaded, states, err := e.transferParts(ctx, absPath, manifest, grants.Parts)
		result.Uploaded += uploaded
		// A part this upload already pushed comes back as a dedup hit
		// on re-negotiation; it stays recorded as uploaded.
		for part, state := range states {
			if result.Parts[part] != PartUploaded {
				result.Parts[part] = state
			}
		}
		if err != nil {
			return nil, err
		}
		if !expired {
			break
		}
		// Handles lapsed mid-transfer. A fresh negotiation reports the
		// parts already stored as dedup hits, so only the remainder
		// moves again.
		if attempt+1 >= renegotiateLimit {
			return nil, fmt.Errorf("upload %s: transfer handles kept expiring", relPath)
		}
		log.Printf("upload %s: re-negotiating expired handles", relPath)
	}
	for _, state := range result.Parts {
		if state == PartDeduped {
			result.Deduped++
		}
	}

	result.State = StateConfirming
	confirm := dto.ConfirmRequest{
		UploadID: grants.UploadID,
		FileID:   fileID,
		Chunks:   make([]dto.ConfirmChunk, len(grants.Parts)),
	}
	for i, grant := range grants.Parts {
		confirm.Chunks[i] = dto.ConfirmChunk{
			ChunkID:     grant.ChunkID,
			PartNumber:  grant.PartNumber,
			Fingerprint: grant.Fingerprint,
			Size:        manifest.Chunks[i].Size,
		}
	}
	if _, err := e.remote.Confirm(ctx, confirm); err != nil {
		return nil, err
	}

	if err := e.recordConfirmed(relPath, fileID, folderID, manifest, confirm.Chunks); err != nil {
		return nil, err
	}
	result.State = StateDone
	return result, nil
}

// transferParts uploads every granted part the store lacks. It reports
// whether any handle had expired so the caller can re-negotiate, and
// the per-part outcome of this attempt.
func (e *Engine) transferParts(ctx context.Context, absPath string, manifest *chunker.Manifest, parts []dto.PartGrant) (expired bool, uploaded int, states map[int]PartState, err error) {
	var mu sync.Mutex
	states = make(map[int]PartState, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.UploadConcurrency)

	for _, grant := range parts {
		grant := grant
		if grant.Exists {
			mu.Lock()
			states[grant.PartNumber] = PartDeduped
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			data, err := readPart(absPath, manifest.Chunks[grant.PartNumber])
			if err != nil {
				return err
			}
			if err := e.remote.PutChunk(gctx, grant.UploadURL, data); err != nil {
				var serr *api.StatusError
				if errors.As(err, &serr) && serr.StatusCode == http.StatusForbidden {
					mu.Lock()
					expired = true
					states[grant.PartNumber] = PartFailed
					mu.Unlock()
					return nil
				}
				mu.Lock()
				states[grant.PartNumber] = PartFailed
				mu.Unlock()
				return err
			}
			e.cache.Put(grant.Fingerprint, data)
			mu.Lock()
			states[grant.PartNumber] = PartUploaded
			uploaded++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, uploaded, states, err
	}
	return expired, uploaded, states, nil
}

func (e *Engine) recordConfirmed(relPath, fileID, folderID string, manifest *chunker.Manifest, chunks []dto.ConfirmChunk) error {
	fileName := filepath.Base(e.AbsPath(relPath))
	if err := e.db.UpsertFile(localdb.FileRecord{
		FileID:   fileID,
		FilePath: relPath,
		FileName: fileName,
		FileType: fileType(fileName),
		FolderID: folderID,
		FileHash: manifest.FileHash,
		Size:     manifest.Size,
	}); err != nil {
		return err
	}
	records := make([]localdb.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = localdb.ChunkRecord{
			FileID:      fileID,
			PartNumber:  c.PartNumber,
			ChunkID:     c.ChunkID,
			Fingerprint: c.Fingerprint,
			Size:        c.Size,
		}
	}
	return e.db.ReplaceChunks(fileID, records)
}

func readPart(path string, ref chunker.ChunkRef) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, ref.Size)
	if _, err := f.ReadAt(buf, ref.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}
