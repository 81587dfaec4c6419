package service

import (
	"FireBox/config"
	"FireBox/internal/dto"
	"FireBox/internal/mq"
	"FireBox/internal/repo"
	"FireBox/internal/storage"
	"FireBox/model"
	"FireBox/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrSessionClosed   = errors.New("upload session expired or closed")
	ErrManifestGap     = errors.New("chunk manifest has a gap")
	ErrPartNotStored   = errors.New("chunk bytes missing from store")
)

// fingerprintKnown reports whether the store already holds the bytes
// for a fingerprint. Cache first, then a stat against the object
// store; a confirmed hit is cached for subsequent negotiations.
func fingerprintKnown(ctx context.Context, fingerprint string) bool {
	if utils.IsFingerprintKnown(ctx, fingerprint) {
		return true
	}
	if storage.Default == nil {
		return false
	}
	if _, err := storage.Default.StatObject(
		ctx,
		config.AppConfig.BucketName,
		storage.ChunkObjectName(fingerprint),
	); err != nil {
		return false
	}
	_ = utils.SetFingerprintKnown(ctx, fingerprint, config.AppConfig.FingerprintCache)
	return true
}

// resumableSession finds a pending, unexpired session for the same
// file content so a restarted client resumes instead of starting over.
func resumableSession(deviceID, fileID, fileHash string) (*model.UploadSession, bool) {
	var session model.UploadSession
	err := repo.Db.
		Where("device_id = ? AND file_id = ? AND file_hash = ? AND status = ?",
			deviceID, fileID, fileHash, model.UploadSessionPending).
		Order("id desc").
		First(&session).Error
	if err != nil {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, false
	}
	return &session, true
}

// NegotiateUpload answers a client's ordered fingerprint list: per
// part either "already present" (dedup hit, store-wide) or a presigned
// PUT handle. File metadata is recorded up front; the chunk manifest
// only changes at confirm.
func NegotiateUpload(ctx context.Context, deviceID string, req dto.NegotiateRequest) (*dto.NegotiateResponse, error) {
	if storage.Default == nil {
		return nil, fmt.Errorf("storage not initialized")
	}

	if err := upsertFileMeta(req); err != nil {
		return nil, err
	}

	session, ok := resumableSession(deviceID, req.FileID, req.FileHash)
	if !ok {
		session = &model.UploadSession{
			UploadID:    utils.GetToken(),
			DeviceID:    deviceID,
			FileID:      req.FileID,
			FileHash:    req.FileHash,
			ChunkSize:   req.ChunkSize,
			TotalChunks: len(req.Fingerprints),
			Status:      model.UploadSessionPending,
			ExpiresAt:   time.Now().Add(config.AppConfig.SessionTTL),
		}
		if err := repo.Db.Create(session).Error; err != nil {
			return nil, err
		}
	}
	if repo.Redis != nil {
		_ = repo.Redis.Set(ctx, repo.UploadSessionKey(session.UploadID), req.FileID, config.AppConfig.SessionTTL).Err()
	}

	expiry := config.AppConfig.PartURLExpiry
	expiresAt := FormatWireTime(time.Now().Add(expiry))
	parts := make([]dto.PartGrant, 0, len(req.Fingerprints))
	for i, fingerprint := range req.Fingerprints {
		grant := dto.PartGrant{
			PartNumber:  i,
			ChunkID:     utils.GetToken(),
			Fingerprint: fingerprint,
		}
		if fingerprintKnown(ctx, fingerprint) {
			grant.Exists = true
		} else {
			url, err := storage.Default.PresignedPutObject(
				ctx,
				config.AppConfig.BucketName,
				storage.ChunkObjectName(fingerprint),
				expiry,
			)
			if err != nil {
				return nil, err
			}
			grant.UploadURL = url
			grant.ExpiresAt = expiresAt
		}
		parts = append(parts, grant)
	}

	return &dto.NegotiateResponse{
		FileID:   req.FileID,
		UploadID: session.UploadID,
		Parts:    parts,
	}, nil
}

func upsertFileMeta(req dto.NegotiateRequest) error {
	var existing model.FileMeta
	err := repo.Db.Where("file_id = ?", req.FileID).First(&existing).Error
	if err == nil {
		return repo.Db.Model(&existing).Updates(map[string]interface{}{
			"file_path": req.FilePath,
			"file_name": req.FileName,
			"file_type": req.FileType,
			"folder_id": req.FolderID,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	// A rename lands as the same path under a new file_id; path is the
	// authoritative identity, so the row is rebound rather than duplicated.
	// The superseded id's chunk rows move with it, otherwise they would be
	// left without a metadata row and break every later delta scan.
	if byPath, perr := GetFileMetaByPath(req.FilePath); perr == nil {
		oldFileID := byPath.FileID
		return repo.Db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(byPath).Updates(map[string]interface{}{
				"file_id":   req.FileID,
				"file_name": req.FileName,
				"file_type": req.FileType,
				"folder_id": req.FolderID,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&model.Chunk{}).
				Where("file_id = ?", oldFileID).
				Update("file_id", req.FileID).Error
		})
	}
	return repo.Db.Create(&model.FileMeta{
		FileID:   req.FileID,
		FilePath: req.FilePath,
		FileName: req.FileName,
		FileType: req.FileType,
		FolderID: req.FolderID,
	}).Error
}

// ConfirmUpload atomically commits a file's complete chunk manifest.
// Every part 0..N-1 must be present in the request and its bytes must
// already sit in the object store; otherwise nothing is committed and
// the client retries or aborts.
func ConfirmUpload(ctx context.Context, req dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	var session model.UploadSession
	if err := repo.Db.Where("upload_id = ?", req.UploadID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != model.UploadSessionPending || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionClosed
	}
	if len(req.Chunks) != session.TotalChunks {
		return nil, fmt.Errorf("%w: got %d parts, session expects %d",
			ErrManifestGap, len(req.Chunks), session.TotalChunks)
	}

	chunks := make([]dto.ConfirmChunk, len(req.Chunks))
	copy(chunks, req.Chunks)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].PartNumber < chunks[j].PartNumber })
	for i, c := range chunks {
		if c.PartNumber != i {
			return nil, fmt.Errorf("%w: missing part %d", ErrManifestGap, i)
		}
	}

	if storage.Default == nil {
		return nil, fmt.Errorf("storage not initialized")
	}
	for _, c := range chunks {
		if !fingerprintKnown(ctx, c.Fingerprint) {
			return nil, fmt.Errorf("%w: part %d (%s)", ErrPartNotStored, c.PartNumber, c.Fingerprint)
		}
	}

	lock := repo.NewRedisLock(
		repo.Redis,
		"lock:confirm:"+req.FileID,
		config.AppConfig.ConfirmLockTTL,
	)
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer lock.Unlock(ctx)

	// Fingerprints dropped by this commit become GC candidates.
	oldChunks, err := GetChunksForFile(req.FileID)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(chunks))
	var size int64
	for _, c := range chunks {
		keep[c.Fingerprint] = struct{}{}
		size += c.Size
	}
	candidates := make([]string, 0)
	for _, old := range oldChunks {
		if _, ok := keep[old.Fingerprint]; !ok {
			candidates = append(candidates, old.Fingerprint)
		}
	}

	now := time.Now()
	err = repo.Db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.FileMeta{}).
			Where("file_id = ?", req.FileID).
			Updates(map[string]interface{}{
				"file_hash": session.FileHash,
				"size":      size,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", req.FileID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		for _, c := range chunks {
			row := model.Chunk{
				ChunkID:     c.ChunkID,
				FileID:      req.FileID,
				PartNumber:  c.PartNumber,
				Size:        c.Size,
				Fingerprint: c.Fingerprint,
				CreatedAt:   now,
				LastSynced:  &now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.UploadSession{}).
			Where("id = ?", session.ID).
			Update("status", model.UploadSessionCommitted).Error
	})
	if err != nil {
		return nil, err
	}

	if repo.Redis != nil {
		_ = repo.Redis.Del(ctx, repo.UploadSessionKey(session.UploadID)).Err()
	}
	publishGCCandidates(ctx, candidates)

	return &dto.ConfirmResponse{
		FileID:          req.FileID,
		ConfirmedChunks: len(chunks),
		Success:         true,
	}, nil
}

// publishGCCandidates hands replaced fingerprints to the GC worker.
// Best effort: a lost event only delays reclamation.
func publishGCCandidates(ctx context.Context, fingerprints []string) {
	if len(fingerprints) == 0 {
		return
	}
	client, err := mq.GetPublisher()
	if err != nil {
		log.Printf("gc publish skipped: %v", err)
		return
	}
	body, err := json.Marshal(mq.GCMessage{Fingerprints: fingerprints})
	if err != nil {
		log.Printf("gc publish skipped: %v", err)
		return
	}
	if err := client.PublishTask(ctx, body); err != nil {
		log.Printf("gc publish failed: %v", err)
	}
}
