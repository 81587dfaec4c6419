package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkRef describes one fixed-size part of a file. PartNumber starts
// at 0; only the final part may be short.
type ChunkRef struct {
	PartNumber  int
	Offset      int64
	Size        int64
	Fingerprint string
}

// Manifest is the complete chunk description of one file at one
// instant: the ordered parts plus the whole-file digest. A zero-byte
// file has zero parts and the digest of empty input.
type Manifest struct {
	Chunks   []ChunkRef
	FileHash string
	Size     int64
}

// ChunkFile splits a file into fixed-size parts and fingerprints each
// part and the whole file in a single sequential read.
func ChunkFile(path string, chunkSize int64) (*Manifest, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return chunkReader(f, chunkSize)
}

func chunkReader(r io.Reader, chunkSize int64) (*Manifest, error) {
	manifest := &Manifest{Chunks: []ChunkRef{}}
	fileHash := sha256.New()
	buf := make([]byte, chunkSize)
	var offset int64
	part := 0

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := buf[:n]
			fileHash.Write(data)
			sum := sha256.Sum256(data)
			manifest.Chunks = append(manifest.Chunks, ChunkRef{
				PartNumber:  part,
				Offset:      offset,
				Size:        int64(n),
				Fingerprint: hex.EncodeToString(sum[:]),
			})
			offset += int64(n)
			part++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	manifest.FileHash = hex.EncodeToString(fileHash.Sum(nil))
	manifest.Size = offset
	return manifest, nil
}

// Fingerprints returns the ordered part fingerprints, index i being
// part i, the shape negotiation expects.
func (m *Manifest) Fingerprints() []string {
	out := make([]string, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Fingerprint
	}
	return out
}
