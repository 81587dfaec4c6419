package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/localdb"

	"github.com/google/uuid"
)

// Remote is the server surface the engine drives. *api.Client is the
// production implementation; tests substitute fakes.
type Remote interface {
	UpsertFolder(ctx context.Context, req dto.FolderRequest) error
	Negotiate(ctx context.Context, req dto.NegotiateRequest) (*dto.NegotiateResponse, error)
	Confirm(ctx context.Context, req dto.ConfirmRequest) (*dto.ConfirmResponse, error)
	DownloadURLs(ctx context.Context, req dto.DownloadRequest) (*dto.DownloadResponse, error)
	Sync(ctx context.Context, req dto.SyncRequest) (*dto.SyncResponse, error)
	PutChunk(ctx context.Context, uploadURL string, data []byte) error
	FetchChunk(ctx context.Context, downloadURL, expectFingerprint string) ([]byte, error)
}

// Options configures an Engine.
type Options struct {
	SyncDir             string
	CacheDir            string
	ChunkSize           int64
	UploadConcurrency   int
	DownloadConcurrency int
}

// Engine owns the two data paths of the client: pushing local changes
// up (uploader) and pulling remote changes down (reconciler). Both
// serialize per path through the same lock set.
type Engine struct {
	remote Remote
	db     *localdb.DB
	opts   Options
	locks  *PathLocks
	cache  *ChunkCache
}

func New(remote Remote, db *localdb.DB, opts Options) *Engine {
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 1
	}
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 1
	}
	return &Engine{
		remote: remote,
		db:     db,
		opts:   opts,
		locks:  NewPathLocks(),
		cache:  NewChunkCache(opts.CacheDir),
	}
}

// RelPath converts an absolute path under the sync dir to the
// canonical slash-separated relative form used on the wire.
func (e *Engine) RelPath(absPath string) (string, error) {
	rel, err := filepath.Rel(e.opts.SyncDir, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// AbsPath converts a wire-form relative path back to a local one.
func (e *Engine) AbsPath(relPath string) string {
	return filepath.Join(e.opts.SyncDir, filepath.FromSlash(relPath))
}

// ForgetFile drops the local bookkeeping for a path that no longer
// exists on disk. Deletions are not pushed to the server; other
// devices keep their copies.
func (e *Engine) ForgetFile(relPath string) error {
	if !e.locks.TryAcquire(relPath) {
		return ErrUploadInFlight
	}
	defer e.locks.Release(relPath)

	rec, err := e.db.GetFileByPath(relPath)
	if err != nil {
		if localdb.IsNotFound(err) {
			return nil
		}
		return err
	}
	return e.db.DeleteFile(rec.FileID)
}

// ensureFolder walks the directory components of a relative file path,
// registering each folder locally and remotely, and returns the ID of
// the file's immediate parent. The sync root maps to a folder with a
// nil parent.
func (e *Engine) ensureFolder(ctx context.Context, relFilePath string) (string, error) {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relFilePath)))
	if dir == "." {
		dir = ""
	}

	// "." is the sync root itself.
	var parentID *string
	folderPath := ""
	folderID, err := e.ensureOneFolder(ctx, ".", ".", nil)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return folderID, nil
	}
	parentID = &folderID

	for _, name := range strings.Split(dir, "/") {
		if folderPath == "" {
			folderPath = name
		} else {
			folderPath = folderPath + "/" + name
		}
		id, err := e.ensureOneFolder(ctx, folderPath, name, parentID)
		if err != nil {
			return "", err
		}
		folderID = id
		parent := id
		parentID = &parent
	}
	return folderID, nil
}

func (e *Engine) ensureOneFolder(ctx context.Context, folderPath, folderName string, parentID *string) (string, error) {
	existing, err := e.db.GetFolderByPath(folderPath)
	if err == nil {
		return existing.FolderID, nil
	}
	if !localdb.IsNotFound(err) {
		return "", err
	}

	record := localdb.FolderRecord{
		FolderID:       uuid.NewString(),
		FolderPath:     folderPath,
		FolderName:     folderName,
		ParentFolderID: parentID,
	}
	if err := e.remote.UpsertFolder(ctx, dto.FolderRequest{
		FolderID:       record.FolderID,
		FolderPath:     record.FolderPath,
		FolderName:     folderName,
		ParentFolderID: parentID,
	}); err != nil {
		return "", err
	}
	if err := e.db.UpsertFolder(record); err != nil {
		return "", err
	}
	return record.FolderID, nil
}

func fileType(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return strings.ToLower(ext)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
