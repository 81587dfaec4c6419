package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Reconstruct writes a file from its ordered parts through a temp file
// in the same directory, then renames it into place. Readers never see
// a half-written file: they observe either the old content or the new,
// and a crash leaves at worst a stray temp file.
//
// source is called once per part in order and must return exactly that
// part's verified bytes. expectHash, when non-empty, is checked against
// the assembled whole before the rename; a mismatch aborts with the
// target untouched.
func Reconstruct(absPath string, numParts int, expectHash string, source func(part int) ([]byte, error)) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".firebox-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	whole := sha256.New()
	for part := 0; part < numParts; part++ {
		data, err := source(part)
		if err != nil {
			return fmt.Errorf("part %d: %w", part, err)
		}
		if _, err := tmp.Write(data); err != nil {
			return err
		}
		whole.Write(data)
	}

	if expectHash != "" {
		if got := hex.EncodeToString(whole.Sum(nil)); got != expectHash {
			return fmt.Errorf("reconstructed file hash mismatch: want %s got %s", expectHash, got)
		}
	}

	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		tmp = nil
		return err
	}
	tmp = nil

	return os.Rename(tmpPath, absPath)
}
