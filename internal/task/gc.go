package task

import (
	"FireBox/config"
	"FireBox/internal/mq"
	"FireBox/internal/repo"
	"FireBox/internal/storage"
	"FireBox/model"
	"FireBox/utils"
	"context"
	"log"

	"github.com/minio/minio-go/v7"
)

// ProcessGCMessage deletes the backing object for every fingerprint
// that no chunk row references anymore. Chunk objects are shared
// across files, so the reference check runs per fingerprint at delete
// time rather than trusting the event that named it.
func ProcessGCMessage(ctx context.Context, msg mq.GCMessage) error {
	for _, fingerprint := range msg.Fingerprints {
		if err := collectFingerprint(ctx, fingerprint); err != nil {
			return err
		}
	}
	return nil
}

func collectFingerprint(ctx context.Context, fingerprint string) error {
	var refs int64
	if err := repo.Db.Model(&model.Chunk{}).
		Where("fingerprint = ?", fingerprint).
		Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return nil
	}

	err := storage.Default.RemoveObject(
		ctx,
		config.AppConfig.BucketName,
		storage.ChunkObjectName(fingerprint),
	)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code != "NoSuchKey" {
			return err
		}
	}

	// The dedup cache must not claim bytes we just removed.
	if cerr := utils.InvalidateFingerprint(ctx, fingerprint); cerr != nil {
		log.Printf("gc: fingerprint cache invalidate failed: %v", cerr)
	}
	return nil
}
