package service

import (
	"FireBox/internal/dto"
	"FireBox/internal/repo"
	"FireBox/model"
	"errors"

	"gorm.io/gorm"
)

// GetOrCreateFolder upserts a folder by its opaque ID. Folders are
// never hard-deleted; moves arrive as path/name/parent updates.
func GetOrCreateFolder(req dto.FolderRequest) (*model.Folder, error) {
	var folder model.Folder
	err := repo.Db.Where("folder_id = ?", req.FolderID).First(&folder).Error
	if err == nil {
		updates := map[string]interface{}{
			"folder_path":      req.FolderPath,
			"folder_name":      req.FolderName,
			"parent_folder_id": req.ParentFolderID,
		}
		if err := repo.Db.Model(&folder).Updates(updates).Error; err != nil {
			return nil, err
		}
		folder.FolderPath = req.FolderPath
		folder.FolderName = req.FolderName
		folder.ParentFolderID = req.ParentFolderID
		return &folder, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	folder = model.Folder{
		FolderID:       req.FolderID,
		FolderPath:     req.FolderPath,
		FolderName:     req.FolderName,
		ParentFolderID: req.ParentFolderID,
	}
	if err := repo.Db.Create(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetFolderByID loads a folder by its opaque ID.
func GetFolderByID(folderID string) (*model.Folder, error) {
	var folder model.Folder
	if err := repo.Db.Where("folder_id = ?", folderID).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}
