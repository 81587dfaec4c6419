package dto

type TokenResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

type FolderResponse struct {
	FolderID string `json:"folder_id"`
	Success  bool   `json:"success"`
}

// PartGrant is negotiation's per-part answer: either the store already
// holds these bytes (Exists, dedup hit) or a time-limited presigned PUT
// handle is issued.
type PartGrant struct {
	PartNumber  int    `json:"part_number"`
	ChunkID     string `json:"chunk_id"`
	Fingerprint string `json:"fingerprint"`
	Exists      bool   `json:"exists"`
	UploadURL   string `json:"upload_url,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

type NegotiateResponse struct {
	FileID   string      `json:"file_id"`
	UploadID string      `json:"upload_id"`
	Parts    []PartGrant `json:"parts"`
}

type ConfirmResponse struct {
	FileID          string `json:"file_id"`
	ConfirmedChunks int    `json:"confirmed_chunks"`
	Success         bool   `json:"success"`
}

type DownloadURLInfo struct {
	ChunkID     string `json:"chunk_id"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint"`
	DownloadURL string `json:"download_url"`
}

type DownloadResponse struct {
	FileID       string            `json:"file_id"`
	URLs         []DownloadURLInfo `json:"download_urls"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

type SyncChunkInfo struct {
	ChunkID     string `json:"chunk_id"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at"`
}

// SyncFileInfo carries a changed file's FULL current manifest, not a
// delta, so the target state is never ambiguous.
type SyncFileInfo struct {
	FileID   string          `json:"file_id"`
	FilePath string          `json:"file_path"`
	FileName string          `json:"file_name"`
	FileType string          `json:"file_type"`
	FolderID string          `json:"folder_id"`
	FileHash string          `json:"file_hash"`
	Size     int64           `json:"size"`
	Chunks   []SyncChunkInfo `json:"chunks"`
}

type SyncResponse struct {
	UpToDate     bool           `json:"up_to_date"`
	LastSyncTime string         `json:"last_sync_time"`
	UpdatedFiles []SyncFileInfo `json:"updated_files,omitempty"`
}
