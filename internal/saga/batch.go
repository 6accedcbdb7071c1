package saga

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
)

// Item is one entry of a list field update: either a key already stored in
// the field, kept as is, or a new payload to upload.
type Item struct {
	key     string
	payload *blobstore.Payload
}

// Keep passes an existing key through unchanged.
func Keep(key string) Item { return Item{key: key} }

// Upload stages payload as a new blob.
func Upload(p *blobstore.Payload) Item { return Item{payload: p} }

// IsUpload reports whether the item carries a new payload.
func (i Item) IsUpload() bool { return i.payload != nil }

// Key returns the kept key; empty for uploads.
func (i Item) Key() string { return i.key }

func (i Item) validate() error {
	if i.payload != nil {
		if i.payload.Body == nil {
			return ErrMissingPayload
		}
		return nil
	}
	if i.key == "" {
		return ErrEmptyKey
	}
	return nil
}

// ReplaceAll sets a list field to items, in order. All uploads are staged
// before the record is touched, and the list is swapped in one update.
// Kept keys must be part of the field's current value. Keys dropped from
// the list are deleted in the background after the commit.
func (s *Saga) ReplaceAll(ctx context.Context, recordID string, field Field, items []Item) (*Result, error) {
	r := s.start(ctx, "replace_all", recordID, field)

	if field.Cardinality != List {
		return nil, r.fail(KindValidation, ErrWrongCardinality)
	}
	kept := make([]string, 0, len(items))
	for idx, it := range items {
		if err := it.validate(); err != nil {
			return nil, r.fail(KindValidation, fmt.Errorf("item %d: %w", idx, err))
		}
		if !it.IsUpload() {
			if slices.Contains(kept, it.key) {
				return nil, r.fail(KindValidation, fmt.Errorf("item %d: %w", idx, ErrDuplicateKey))
			}
			kept = append(kept, it.key)
		}
	}

	next := make([]string, len(items))
	var staged []string

	r.to(ctx, StateStaging)
	for idx, it := range items {
		if !it.IsUpload() {
			next[idx] = it.key
			continue
		}
		key, err := s.blobs.Save(ctx, it.payload, field.Namespace)
		if err != nil {
			r.to(ctx, StateStageFailed)
			r.logger.Warn(ctx, "batch staging failed, removing staged items", "item", idx, "staged", len(staged), "err", err)
			s.deleteAll(context.WithoutCancel(ctx), r, staged, "compensation")
			return nil, r.fail(KindStorage, fmt.Errorf("item %d: %w", idx, err))
		}
		staged = append(staged, key)
		next[idx] = key
	}
	r.to(ctx, StateStaged)
	r.logger.Debug(ctx, "batch staged", "uploads", len(staged), "kept", len(kept))

	r.to(ctx, StateCommitting)
	old, err := s.commit(ctx, recordID, field, func(current []string) ([]string, error) {
		for _, k := range kept {
			if !slices.Contains(current, k) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
			}
		}
		return next, nil
	})
	if err != nil {
		return nil, r.compensate(ctx, without(next, kept), err)
	}
	r.to(ctx, StateCommitted)

	replaced := without(old, next)
	s.cleanup(ctx, r, replaced)
	return r.done(next, replaced), nil
}
