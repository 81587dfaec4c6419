package service

import (
	"FireBox/config"
	"FireBox/internal/dto"
	"FireBox/internal/storage"
	"context"
	"errors"
	"fmt"
)

var ErrChunkMissing = errors.New("chunk object not in store")

// DownloadURLs issues presigned GET handles for the requested chunks.
// Each fingerprint is stat'ed first so a dangling manifest row surfaces
// here as a clean error instead of a 404 against the store later.
func DownloadURLs(ctx context.Context, req dto.DownloadRequest) (*dto.DownloadResponse, error) {
	if storage.Default == nil {
		return nil, fmt.Errorf("storage not initialized")
	}

	urls := make([]dto.DownloadURLInfo, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		if !fingerprintKnown(ctx, c.Fingerprint) {
			return nil, fmt.Errorf("%w: part %d (%s)", ErrChunkMissing, c.PartNumber, c.Fingerprint)
		}
		url, err := storage.Default.PresignedGetObject(
			ctx,
			config.AppConfig.BucketName,
			storage.ChunkObjectName(c.Fingerprint),
			config.AppConfig.PartURLExpiry,
		)
		if err != nil {
			return nil, err
		}
		urls = append(urls, dto.DownloadURLInfo{
			ChunkID:     c.ChunkID,
			PartNumber:  c.PartNumber,
			Fingerprint: c.Fingerprint,
			DownloadURL: url,
		})
	}

	return &dto.DownloadResponse{
		FileID:  req.FileID,
		URLs:    urls,
		Success: true,
	}, nil
}
