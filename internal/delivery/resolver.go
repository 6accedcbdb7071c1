// Package delivery turns storage keys into responses clients can consume:
// either the bytes with the right headers, or a redirect to a signed URL.
package delivery

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
)

// Descriptor is the resolved form of a key. Exactly one of Data and URL is set.
type Descriptor struct {
	Key         string
	ContentType string
	// Disposition is empty for images, which render inline anyway.
	Disposition string
	Data        []byte
	URL         string
	ExpiresAt   time.Time
}

// Signed reports whether the descriptor points at a signed URL.
func (d *Descriptor) Signed() bool { return d.URL != "" }

// Resolver builds descriptors from a BlobStore. Keys are immutable, so the
// same key always yields the same content type and bytes.
type Resolver struct {
	blobs blobstore.BlobStore
	ttl   time.Duration
}

func NewResolver(blobs blobstore.BlobStore, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = blobstore.DefaultSignedURLTTL
	}
	return &Resolver{blobs: blobs, ttl: ttl}
}

// Resolve prefers a signed URL when the backend can issue one and falls
// back to the bytes otherwise.
func (r *Resolver) Resolve(ctx context.Context, key string) (*Descriptor, error) {
	signer, ok := r.blobs.(blobstore.Signer)
	if !ok {
		return r.Stream(ctx, key)
	}
	u, err := signer.SignedURL(ctx, key, r.ttl)
	if err != nil {
		return nil, err
	}
	d := describe(key)
	d.URL = u.URL
	d.ExpiresAt = u.ExpiresAt
	return d, nil
}

// Stream always loads the bytes through this process.
func (r *Resolver) Stream(ctx context.Context, key string) (*Descriptor, error) {
	obj, err := r.blobs.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	d := describe(key)
	if d.ContentType == blobstore.DefaultContentType && obj.ContentType != "" {
		d.ContentType = obj.ContentType
		d.Disposition = disposition(key, d.ContentType)
	}
	d.Data = obj.Data
	return d, nil
}

// URL returns a link for key: the signed URL when the backend can issue
// one, otherwise the delivery endpoint under base.
func (r *Resolver) URL(ctx context.Context, key, base string) (string, error) {
	if signer, ok := r.blobs.(blobstore.Signer); ok {
		u, err := signer.SignedURL(ctx, key, r.ttl)
		if err != nil {
			return "", err
		}
		return u.URL, nil
	}
	return FileURL(base, key), nil
}

func describe(key string) *Descriptor {
	ct := blobstore.ContentTypeForKey(key)
	return &Descriptor{Key: key, ContentType: ct, Disposition: disposition(key, ct)}
}

func disposition(key, contentType string) string {
	if blobstore.IsImage(contentType) {
		return ""
	}
	return "inline; filename=" + key
}
