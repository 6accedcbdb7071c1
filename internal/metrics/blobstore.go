package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
)

// InstrumentBlobStore wraps b so every call is counted and timed. Signer
// support is preserved when b has it.
func (m *Metrics) InstrumentBlobStore(b blobstore.BlobStore) blobstore.BlobStore {
	inst := &instrumentedStore{next: b, m: m}
	if signer, ok := b.(blobstore.Signer); ok {
		return &instrumentedSigner{instrumentedStore: inst, signer: signer}
	}
	return inst
}

type instrumentedStore struct {
	next blobstore.BlobStore
	m    *Metrics
}

func (s *instrumentedStore) observe(op string, started time.Time, err error) {
	backend := s.next.Backend()
	s.m.blobOpsTotal.WithLabelValues(backend, op, resultLabel(err)).Inc()
	s.m.blobOpsDuration.WithLabelValues(backend, op).Observe(time.Since(started).Seconds())
}

func (s *instrumentedStore) Save(ctx context.Context, p *blobstore.Payload, namespace string) (string, error) {
	started := time.Now()
	key, err := s.next.Save(ctx, p, namespace)
	s.observe("save", started, err)
	return key, err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	started := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", started, err)
	return err
}

func (s *instrumentedStore) Resolve(ctx context.Context, key string) (*blobstore.Object, error) {
	started := time.Now()
	obj, err := s.next.Resolve(ctx, key)
	s.observe("resolve", started, err)
	return obj, err
}

func (s *instrumentedStore) Backend() string { return s.next.Backend() }

type instrumentedSigner struct {
	*instrumentedStore
	signer blobstore.Signer
}

func (s *instrumentedSigner) SignedURL(ctx context.Context, key string, ttl time.Duration) (*blobstore.SignedURL, error) {
	started := time.Now()
	u, err := s.signer.SignedURL(ctx, key, ttl)
	s.observe("sign", started, err)
	return u, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case blobstore.IsNotFound(err):
		return "not_found"
	case blobstore.IsTransient(err):
		return "transient"
	}
	return "error"
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
