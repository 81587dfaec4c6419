package dto

type RegisterDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type LoginDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type FolderRequest struct {
	FolderID       string  `json:"folder_id" binding:"required"`
	FolderPath     string  `json:"folder_path" binding:"required"`
	FolderName     string  `json:"folder_name" binding:"required"`
	ParentFolderID *string `json:"parent_folder_id"`
}

// NegotiateRequest opens (or resumes) a multipart upload. Fingerprints
// are ordered by part number: index i is part i.
type NegotiateRequest struct {
	FileID       string   `json:"file_id" binding:"required"`
	FilePath     string   `json:"file_path" binding:"required"`
	FileName     string   `json:"file_name" binding:"required"`
	FileType     string   `json:"file_type"`
	FolderID     string   `json:"folder_id" binding:"required"`
	FileHash     string   `json:"file_hash"`
	Size         int64    `json:"size"`
	ChunkSize    int64    `json:"chunk_size" binding:"required"`
	Fingerprints []string `json:"fingerprints"`
}

type ConfirmChunk struct {
	ChunkID     string `json:"chunk_id" binding:"required"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint" binding:"required"`
	Size        int64  `json:"size"`
}

// ConfirmRequest commits the complete ordered chunk manifest for a file.
type ConfirmRequest struct {
	UploadID string         `json:"upload_id" binding:"required"`
	FileID   string         `json:"file_id" binding:"required"`
	Chunks   []ConfirmChunk `json:"chunks" binding:"required"`
}

type DownloadChunkInfo struct {
	ChunkID     string `json:"chunk_id"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint" binding:"required"`
}

type DownloadRequest struct {
	FileID string              `json:"file_id" binding:"required"`
	Chunks []DownloadChunkInfo `json:"chunks" binding:"required"`
}

// SyncRequest carries the device's cursor; nil means "never synced"
// and the server reports every file it knows about.
type SyncRequest struct {
	LastSyncTime *string `json:"last_sync_time"`
}
