// Package blobstore stores the binary assets referenced by profile records
// (profile pictures, company logos, gallery and industry images).
//
// Every backend implements BlobStore identically. Keys are produced by
// KeyNamer and have the shape
//
//	uploads/<namespace>/<slug>.<token>[-<suffix>].<ext>
//
// Callers outside this package and the delivery layer treat keys as opaque.
// Bytes stored under a key never change; replacing content always means a
// new key.
package blobstore

import (
	"context"
	"io"
	"time"
)

// DefaultSignedURLTTL is the lifetime of signed URLs when none is configured.
const DefaultSignedURLTTL = time.Hour

// Namespaces used by the profile file fields.
const (
	NamespaceProfileImages  = "profile-images"
	NamespaceCompanyLogos   = "company-logos"
	NamespaceBusinessImages = "business-images"
	NamespaceIndustryImages = "industry-images"
)

// Payload is an uploaded body plus what the client declared about it.
// It is owned by the caller until passed to Save.
type Payload struct {
	// Name is the client's original filename; only used to build the key.
	Name string
	// ContentType is the declared MIME type, possibly empty.
	ContentType string
	// Size is the declared length in bytes. Zero means unknown; a positive
	// value is enforced and a short or long body fails the save.
	Size int64
	// Body streams the content.
	Body io.Reader
	// KeySuffix is an optional discriminator appended after the token.
	KeySuffix string
}

// Object is the content stored under a key.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
}

// SignedURL is a time-limited bearer URL for one key.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// BlobStore is the uniform contract over a storage medium.
type BlobStore interface {
	// Save writes payload under a fresh key in namespace. On failure nothing
	// is reachable under the key.
	Save(ctx context.Context, payload *Payload, namespace string) (string, error)

	// Delete removes the bytes under key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Resolve returns the bytes under key and the content type recorded at
	// save time. A missing key yields an error matching ErrNotFound.
	Resolve(ctx context.Context, key string) (*Object, error)

	// Backend names the medium ("local", "s3") for logs and metrics.
	Backend() string
}

// Signer is implemented by backends that can hand out signed URLs, letting
// clients fetch bytes without going through this process.
type Signer interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (*SignedURL, error)
}
