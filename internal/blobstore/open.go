package blobstore

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendLocal = localBackend
	BackendS3    = s3Backend
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	LocalRoot string
	S3        S3Config
}

// Open returns the backend named by o.Backend.
func Open(ctx context.Context, o Options) (BlobStore, error) {
	switch o.Backend {
	case BackendLocal, "":
		return NewLocal(o.LocalRoot)
	case BackendS3:
		return NewS3(ctx, o.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", o.Backend)
	}
}
