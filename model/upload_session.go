package model

import "time"

const (
	UploadSessionPending   = 0
	UploadSessionCommitted = 1
	UploadSessionAborted   = 2
)

type UploadSession struct {
	ID uint64 `gorm:"primaryKey"`

	UploadID string `gorm:"column:upload_id;size:36;uniqueIndex;not null"`

	DeviceID string `gorm:"column:device_id;size:36;index;not null"`

	FileID   string `gorm:"column:file_id;size:36;index;not null"`
	FileHash string `gorm:"column:file_hash;size:64;not null"`

	ChunkSize   int64 `gorm:"column:chunk_size;not null"`
	TotalChunks int   `gorm:"column:total_chunks;not null"`

	Status int `gorm:"column:status;not null;default:0"`

	ExpiresAt time.Time `gorm:"column:expires_at;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the database table name.
func (UploadSession) TableName() string {
	return "upload_session"
}
