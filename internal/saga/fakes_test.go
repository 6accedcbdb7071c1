package saga

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// memRecords is a RecordStore over a map with real compare-and-swap.
type memRecords struct {
	mu     sync.Mutex
	fields map[string]map[string][]string

	getErr error
	setErr error
	// beforeSet runs before each SetField, outside the lock, with the
	// 1-based call number. Tests use it to simulate a concurrent writer.
	beforeSet func(call int)
	setCalls  int
}

func newMemRecords() *memRecords {
	return &memRecords{fields: map[string]map[string][]string{}}
}

func (m *memRecords) put(id, field string, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fields[id] == nil {
		m.fields[id] = map[string][]string{}
	}
	m.fields[id][field] = keys
}

func (m *memRecords) get(id, field string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.fields[id][field])
}

func (m *memRecords) GetField(_ context.Context, id string, f Field) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.fields[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return slices.Clone(rec[f.Name]), nil
}

func (m *memRecords) SetField(_ context.Context, id string, f Field, expected, next []string) error {
	m.mu.Lock()
	m.setCalls++
	call, hook := m.setCalls, m.beforeSet
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	rec, ok := m.fields[id]
	if !ok {
		return common.ErrorNotFound
	}
	if !slices.Equal(rec[f.Name], expected) {
		return common.ErrVersionConflict
	}
	rec[f.Name] = slices.Clone(next)
	return nil
}

// spyBlobs wraps a real store, records calls and injects failures.
type spyBlobs struct {
	blobstore.BlobStore

	mu        sync.Mutex
	saved     []string
	deleted   []string
	saveCalls int
	// failSaveAt fails the n-th Save (1-based); 0 disables.
	failSaveAt int
	saveErr    error
	deleteErr  error
}

func (s *spyBlobs) Save(ctx context.Context, p *blobstore.Payload, ns string) (string, error) {
	s.mu.Lock()
	s.saveCalls++
	fail := s.failSaveAt != 0 && s.saveCalls == s.failSaveAt
	s.mu.Unlock()
	if fail {
		return "", s.saveErr
	}
	key, err := s.BlobStore.Save(ctx, p, ns)
	if err == nil {
		s.mu.Lock()
		s.saved = append(s.saved, key)
		s.mu.Unlock()
	}
	return key, err
}

func (s *spyBlobs) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.BlobStore.Delete(ctx, key)
}

func (s *spyBlobs) savedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.saved)
}

func (s *spyBlobs) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

type finished struct {
	op    string
	state State
	kind  Kind
}

type recordingObserver struct {
	mu       sync.Mutex
	finished []finished
	orphans  map[string]int
}

func (o *recordingObserver) SagaFinished(op, _ string, state State, kind Kind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, finished{op: op, state: state, kind: kind})
}

func (o *recordingObserver) BlobOrphaned(_, phase string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.orphans == nil {
		o.orphans = map[string]int{}
	}
	o.orphans[phase]++
}
