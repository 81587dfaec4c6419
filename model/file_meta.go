package model

import "time"

type FileMeta struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	FileID string `gorm:"column:file_id;size:36;uniqueIndex;not null" json:"file_id"`

	// Canonical slash-separated path inside the sync tree; the primary
	// matching key across devices.
	FilePath string `gorm:"column:file_path;size:1024;uniqueIndex:uk_file_path,length:768;not null" json:"file_path"`
	FileName string `gorm:"column:file_name;size:255;not null" json:"file_name"`
	FileType string `gorm:"column:file_type;size:64;not null" json:"file_type"`

	FolderID string `gorm:"column:folder_id;size:36;index;not null" json:"folder_id"`

	// Whole-file content digest, used as the cheap change pre-check.
	FileHash string `gorm:"column:file_hash;size:64;index" json:"file_hash"`

	Size int64 `gorm:"column:size;not null;default:0" json:"size"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (FileMeta) TableName() string {
	return "file_meta"
}
