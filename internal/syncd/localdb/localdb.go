package localdb

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the client's local state: the mirror of what this device
// believes the server holds, plus the sync cursor. It is consulted to
// decide whether a local change needs uploading and whether a remote
// manifest differs from what is already on disk.
type DB struct {
	*sql.DB
}

// FileRecord mirrors one synced file's server-side metadata.
type FileRecord struct {
	FileID   string
	FilePath string
	FileName string
	FileType string
	FolderID string
	FileHash string
	Size     int64
}

// ChunkRecord mirrors one committed chunk row.
type ChunkRecord struct {
	FileID      string
	PartNumber  int
	ChunkID     string
	Fingerprint string
	Size        int64
}

// FolderRecord mirrors one folder row.
type FolderRecord struct {
	FolderID       string
	FolderPath     string
	FolderName     string
	ParentFolderID *string
}

// Open opens (creating if needed) the local state database.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db := &DB{sqlDB}
	if err := db.initialize(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS folders (
			folder_id TEXT PRIMARY KEY,
			folder_path TEXT NOT NULL,
			folder_name TEXT NOT NULL,
			parent_folder_id TEXT
		);
		CREATE TABLE IF NOT EXISTS files (
			file_id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL UNIQUE,
			file_name TEXT NOT NULL,
			file_type TEXT,
			folder_id TEXT,
			file_hash TEXT,
			size INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS chunks (
			file_id TEXT NOT NULL,
			part_number INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (file_id, part_number)
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_fingerprint ON chunks(fingerprint);
		CREATE TABLE IF NOT EXISTS sync_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_sync_time TEXT
		);
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
	`)
	return err
}

// UpsertFolder records a folder the scanner saw.
func (db *DB) UpsertFolder(folder FolderRecord) error {
	_, err := db.Exec(`
		INSERT INTO folders (folder_id, folder_path, folder_name, parent_folder_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(folder_id) DO UPDATE SET
			folder_path = excluded.folder_path,
			folder_name = excluded.folder_name,
			parent_folder_id = excluded.parent_folder_id
	`, folder.FolderID, folder.FolderPath, folder.FolderName, folder.ParentFolderID)
	return err
}

// GetFolderByPath finds a folder by its relative path.
func (db *DB) GetFolderByPath(folderPath string) (*FolderRecord, error) {
	var folder FolderRecord
	err := db.QueryRow(`
		SELECT folder_id, folder_path, folder_name, parent_folder_id
		FROM folders WHERE folder_path = ?
	`, folderPath).Scan(&folder.FolderID, &folder.FolderPath, &folder.FolderName, &folder.ParentFolderID)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpsertFile records a file's confirmed server-side state. Path is the
// conflict key besides file_id: a rename rebinds the row.
func (db *DB) UpsertFile(file FileRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A rename under a new file_id collides on path; clear the stale
	// identity first so the UNIQUE constraint cannot fire.
	if _, err := tx.Exec(`DELETE FROM files WHERE file_path = ? AND file_id <> ?`,
		file.FilePath, file.FileID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO files (file_id, file_path, file_name, file_type, folder_id, file_hash, size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			file_type = excluded.file_type,
			folder_id = excluded.folder_id,
			file_hash = excluded.file_hash,
			size = excluded.size
	`, file.FileID, file.FilePath, file.FileName, file.FileType, file.FolderID, file.FileHash, file.Size); err != nil {
		return err
	}
	return tx.Commit()
}

// GetFileByPath finds a file record by its relative path.
func (db *DB) GetFileByPath(filePath string) (*FileRecord, error) {
	return db.getFile(`file_path = ?`, filePath)
}

// GetFileByID finds a file record by its opaque ID.
func (db *DB) GetFileByID(fileID string) (*FileRecord, error) {
	return db.getFile(`file_id = ?`, fileID)
}

func (db *DB) getFile(where string, arg interface{}) (*FileRecord, error) {
	var file FileRecord
	err := db.QueryRow(`
		SELECT file_id, file_path, file_name, file_type, folder_id, file_hash, size
		FROM files WHERE `+where,
		arg).Scan(&file.FileID, &file.FilePath, &file.FileName, &file.FileType,
		&file.FolderID, &file.FileHash, &file.Size)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// IsNotFound reports whether an error is the no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ListFiles returns every tracked file.
func (db *DB) ListFiles() ([]FileRecord, error) {
	rows, err := db.Query(`
		SELECT file_id, file_path, file_name, file_type, folder_id, file_hash, size
		FROM files ORDER BY file_path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var file FileRecord
		if err := rows.Scan(&file.FileID, &file.FilePath, &file.FileName, &file.FileType,
			&file.FolderID, &file.FileHash, &file.Size); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// DeleteFile removes a file record and its chunks.
func (db *DB) DeleteFile(fileID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChunks swaps in a file's full new manifest atomically.
func (db *DB) ReplaceChunks(fileID string, chunks []ChunkRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := tx.Exec(`
			INSERT INTO chunks (file_id, part_number, chunk_id, fingerprint, size)
			VALUES (?, ?, ?, ?, ?)
		`, fileID, c.PartNumber, c.ChunkID, c.Fingerprint, c.Size); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunks returns a file's manifest ordered by part number.
func (db *DB) GetChunks(fileID string) ([]ChunkRecord, error) {
	rows, err := db.Query(`
		SELECT file_id, part_number, chunk_id, fingerprint, size
		FROM chunks WHERE file_id = ? ORDER BY part_number
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.FileID, &c.PartNumber, &c.ChunkID, &c.Fingerprint, &c.Size); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// LastSyncTime returns the stored cursor, nil when never synced.
func (db *DB) LastSyncTime() (*string, error) {
	var cursor sql.NullString
	err := db.QueryRow(`SELECT last_sync_time FROM sync_state WHERE id = 1`).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cursor.Valid {
		return nil, nil
	}
	v := cursor.String
	return &v, nil
}

// SetLastSyncTime persists the server-issued cursor. Called only after
// a sync round fully succeeds, so a crashed round replays instead of
// skipping changes.
func (db *DB) SetLastSyncTime(cursor string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (id, last_sync_time) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_sync_time = excluded.last_sync_time
	`, cursor)
	return err
}
