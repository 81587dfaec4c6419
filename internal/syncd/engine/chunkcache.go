package engine

import (
	"os"
	"path/filepath"

	"FireBox/internal/syncd/fingerprint"
	"FireBox/internal/syncd/localdb"
)

// ChunkCache keeps verified chunk bytes on disk keyed by fingerprint,
// so a sync round can rebuild a file without refetching parts this
// device has already seen. The cache is best effort throughout; any
// miss or IO error just means a download.
type ChunkCache struct {
	dir string
}

func NewChunkCache(dir string) *ChunkCache {
	return &ChunkCache{dir: dir}
}

func (c *ChunkCache) path(fp string) string {
	return filepath.Join(c.dir, fp)
}

// Get returns cached bytes for a fingerprint, re-verifying them before
// trusting a file that may have been truncated or corrupted on disk.
func (c *ChunkCache) Get(fp string) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path(fp))
	if err != nil {
		return nil, false
	}
	if fingerprint.Bytes(data) != fp {
		_ = os.Remove(c.path(fp))
		return nil, false
	}
	return data, true
}

// Put stores verified chunk bytes.
func (c *ChunkCache) Put(fp string, data []byte) {
	if c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	tmp := c.path(fp) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, c.path(fp)); err != nil {
		_ = os.Remove(tmp)
	}
}

// Prune removes cached chunks no tracked file references anymore.
func (c *ChunkCache) Prune(db *localdb.DB) error {
	if c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	referenced := make(map[string]struct{})
	files, err := db.ListFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		chunks, err := db.GetChunks(f.FileID)
		if err != nil {
			return err
		}
		for _, ch := range chunks {
			referenced[ch.Fingerprint] = struct{}{}
		}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := referenced[name]; ok {
			continue
		}
		_ = os.Remove(filepath.Join(c.dir, name))
	}
	return nil
}
