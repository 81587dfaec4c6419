package storage

import (
	"context"
	"io"
	"time"
)

// PutOptions describes upload options for object storage.
type PutOptions struct {
	ContentType string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ObjectName string
	Size       int64
}

// Store abstracts the chunk/object store. Chunk bytes live under
// chunks/<fingerprint>; uploads and downloads go through time-limited
// presigned handles so the API server never proxies chunk payloads.
type Store interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, ObjectInfo, error)
	StatObject(ctx context.Context, bucket, object string) (ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string) error
	PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
}

// Default is the main object store instance.
var Default Store

// ChunkObjectName returns the content-addressed object path for a
// chunk fingerprint. Identical bytes from any file or device map to
// the same object.
func ChunkObjectName(fingerprint string) string {
	return "chunks/" + fingerprint
}
