package service

import (
	"FireBox/internal/repo"
	"FireBox/model"
	"time"
)

// TimeWire is the wire format for all protocol timestamps.
const TimeWire = time.RFC3339Nano

// FormatWireTime renders a timestamp for the wire.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(TimeWire)
}

// ParseWireTime parses a wire timestamp.
func ParseWireTime(s string) (time.Time, error) {
	return time.Parse(TimeWire, s)
}

// GetFileMetaByID loads file metadata by its opaque ID.
func GetFileMetaByID(fileID string) (*model.FileMeta, error) {
	var file model.FileMeta
	if err := repo.Db.Where("file_id = ?", fileID).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFileMetaByPath loads file metadata by canonical path.
func GetFileMetaByPath(filePath string) (*model.FileMeta, error) {
	var file model.FileMeta
	if err := repo.Db.Where("file_path = ?", filePath).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// GetChunksForFile loads a file's manifest ordered by part number.
func GetChunksForFile(fileID string) ([]model.Chunk, error) {
	chunks := make([]model.Chunk, 0)
	err := repo.Db.
		Where("file_id = ?", fileID).
		Order("part_number asc").
		Find(&chunks).Error
	return chunks, err
}
