package model

import "time"

type Folder struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	FolderID   string `gorm:"column:folder_id;size:36;uniqueIndex;not null" json:"folder_id"`
	FolderPath string `gorm:"column:folder_path;size:1024;not null" json:"folder_path"`
	FolderName string `gorm:"column:folder_name;size:255;not null" json:"folder_name"`

	// Null for the sync root.
	ParentFolderID *string `gorm:"column:parent_folder_id;size:36;index" json:"parent_folder_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Folder) TableName() string {
	return "folder"
}
