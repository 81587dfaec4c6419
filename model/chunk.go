package model

import "time"

type Chunk struct {
	ID uint64 `gorm:"primaryKey"`

	ChunkID string `gorm:"column:chunk_id;size:36;index;not null"`

	FileID string `gorm:"column:file_id;size:36;not null;uniqueIndex:uk_file_part"`

	// 0-based, contiguous per file once committed; defines byte order.
	PartNumber int `gorm:"column:part_number;not null;uniqueIndex:uk_file_part"`

	Size int64 `gorm:"column:size;not null"`

	// SHA-256 of the chunk's bytes; the dedup key shared across files
	// and devices. The object store addresses bytes by this value.
	Fingerprint string `gorm:"column:fingerprint;size:64;index;not null"`

	CreatedAt  time.Time  `gorm:"column:created_at;index"`
	LastSynced *time.Time `gorm:"column:last_synced"`
}

// TableName returns the database table name.
func (Chunk) TableName() string {
	return "chunk"
}
