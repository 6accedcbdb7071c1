package saga

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// Cardinality says whether a field holds one key or an ordered list.
type Cardinality int

const (
	Single Cardinality = iota
	List
)

// Field describes a record field that holds storage keys.
type Field struct {
	// Name identifies the field to the RecordStore.
	Name string
	// Namespace groups the field's blobs in storage.
	Namespace   string
	Cardinality Cardinality
}

// RecordStore is the record side of the saga. Both methods must be atomic
// on a single record. Values are passed as slices for both cardinalities;
// a cleared single field is an empty slice.
type RecordStore interface {
	// GetField returns the field's current keys or common.ErrorNotFound.
	GetField(ctx context.Context, recordID string, field Field) ([]string, error)

	// SetField replaces the field with next only if it still equals
	// expected. It returns common.ErrorNotFound for a missing record and
	// common.ErrVersionConflict when the field changed since it was read.
	SetField(ctx context.Context, recordID string, field Field, expected, next []string) error
}

// Observer receives saga outcomes, e.g. for metrics.
type Observer interface {
	SagaFinished(op, field string, state State, kind Kind, elapsed time.Duration)
	BlobOrphaned(field, phase string)
}

type nopObserver struct{}

func (nopObserver) SagaFinished(string, string, State, Kind, time.Duration) {}
func (nopObserver) BlobOrphaned(string, string)                             {}

// Result describes a committed operation.
type Result struct {
	RecordID string
	Field    string
	// Keys is the field's value after the commit.
	Keys []string
	// Replaced holds the keys the commit superseded; they are being deleted.
	Replaced []string
	State    State
}

// Key returns the committed key of a single field, or "" when cleared.
func (r *Result) Key() string {
	if len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[0]
}

const (
	defaultCommitRetries  = 3
	defaultRetryDelay     = 20 * time.Millisecond
	defaultCleanupTimeout = time.Minute
)

// Saga runs file-field operations. It is safe for concurrent use.
type Saga struct {
	blobs    blobstore.BlobStore
	records  RecordStore
	logger   logging.Logger
	observer Observer

	commitRetries  uint64
	retryDelay     time.Duration
	cleanupTimeout time.Duration

	wg sync.WaitGroup
}

type Option func(*Saga)

func WithObserver(o Observer) Option {
	return func(s *Saga) { s.observer = o }
}

// WithCommitRetries bounds how often a commit that lost a race is retried.
func WithCommitRetries(n uint64, delay time.Duration) Option {
	return func(s *Saga) {
		s.commitRetries = n
		s.retryDelay = delay
	}
}

// WithCleanupTimeout limits each background cleanup run.
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *Saga) { s.cleanupTimeout = d }
}

func New(blobs blobstore.BlobStore, records RecordStore, logger logging.Logger, opts ...Option) *Saga {
	s := &Saga{
		blobs:          blobs,
		records:        records,
		logger:         logger,
		observer:       nopObserver{},
		commitRetries:  defaultCommitRetries,
		retryDelay:     defaultRetryDelay,
		cleanupTimeout: defaultCleanupTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Wait blocks until every background cleanup has finished.
func (s *Saga) Wait() {
	s.wg.Wait()
}

// run tracks one operation through the state machine.
type run struct {
	s        *Saga
	op       string
	recordID string
	field    Field
	state    State
	started  time.Time
	logger   logging.Logger
}

func (s *Saga) start(ctx context.Context, op, recordID string, field Field) *run {
	r := &run{
		s:        s,
		op:       op,
		recordID: recordID,
		field:    field,
		state:    StateIdle,
		started:  time.Now(),
		logger:   s.logger.With("op", op, "field", field.Name, "record_id", recordID),
	}
	r.logger.Debug(ctx, "saga started")
	return r
}

func (r *run) to(ctx context.Context, next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("saga: illegal transition %s -> %s", r.state, next))
	}
	r.logger.Debug(ctx, "saga transition", "from", r.state.String(), "to", next.String())
	r.state = next
}

func (r *run) fail(kind Kind, err error) *Error {
	r.s.observer.SagaFinished(r.op, r.field.Name, r.state, kind, time.Since(r.started))
	return &Error{Kind: kind, Op: r.op, Field: r.field.Name, RecordID: r.recordID, State: r.state, Err: err}
}

func (r *run) done(keys, replaced []string) *Result {
	r.s.observer.SagaFinished(r.op, r.field.Name, r.state, 0, time.Since(r.started))
	return &Result{RecordID: r.recordID, Field: r.field.Name, Keys: keys, Replaced: replaced, State: r.state}
}

// Replace stores payload and points the single field at it. The previous
// blob is deleted in the background once the record is updated.
func (s *Saga) Replace(ctx context.Context, recordID string, field Field, payload *blobstore.Payload) (*Result, error) {
	r := s.start(ctx, "replace", recordID, field)

	if field.Cardinality != Single {
		return nil, r.fail(KindValidation, ErrWrongCardinality)
	}
	if payload == nil || payload.Body == nil {
		return nil, r.fail(KindValidation, ErrMissingPayload)
	}

	r.to(ctx, StateStaging)
	newKey, err := s.blobs.Save(ctx, payload, field.Namespace)
	if err != nil {
		r.to(ctx, StateStageFailed)
		return nil, r.fail(KindStorage, err)
	}
	r.to(ctx, StateStaged)
	r.logger.Debug(ctx, "blob staged", "key", newKey)

	next := []string{newKey}
	r.to(ctx, StateCommitting)
	old, err := s.commit(ctx, recordID, field, func([]string) ([]string, error) { return next, nil })
	if err != nil {
		return nil, r.compensate(ctx, []string{newKey}, err)
	}
	r.to(ctx, StateCommitted)

	replaced := without(old, next)
	s.cleanup(ctx, r, replaced)
	return r.done(next, replaced), nil
}

// Clear empties the field and deletes what it referenced. Clearing an
// already empty field succeeds without touching storage.
func (s *Saga) Clear(ctx context.Context, recordID string, field Field) (*Result, error) {
	r := s.start(ctx, "clear", recordID, field)

	r.to(ctx, StateCommitting)
	old, err := s.commit(ctx, recordID, field, func([]string) ([]string, error) { return nil, nil })
	if err != nil {
		r.to(ctx, StateCommitFailed)
		return nil, r.fail(KindConsistency, err)
	}
	r.to(ctx, StateCommitted)

	s.cleanup(ctx, r, old)
	return r.done(nil, old), nil
}

// commit reads the field, lets build compute the new value from it and
// swaps it in. Lost races are retried with a fresh read; build is called
// again each time. Returns the value that was replaced.
func (s *Saga) commit(ctx context.Context, recordID string, field Field, build func(current []string) ([]string, error)) ([]string, error) {
	var replaced []string
	b := retry.WithMaxRetries(s.commitRetries, retry.NewConstant(s.retryDelay))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		current, err := s.records.GetField(ctx, recordID, field)
		if err != nil {
			return err
		}
		next, err := build(current)
		if err != nil {
			return err
		}
		if err := s.records.SetField(ctx, recordID, field, current, next); err != nil {
			if errors.Is(err, common.ErrVersionConflict) {
				s.logger.Debug(ctx, "commit lost a race, retrying", "field", field.Name, "record_id", recordID)
				return retry.RetryableError(err)
			}
			return err
		}
		replaced = current
		return nil
	})
	return replaced, err
}

// compensate deletes blobs staged by a saga whose commit failed, then
// returns the commit error. The deletes ignore request cancellation.
func (r *run) compensate(ctx context.Context, staged []string, cause error) error {
	r.to(ctx, StateCommitFailed)
	r.logger.Warn(ctx, "commit failed, compensating", "err", cause, "staged", len(staged))

	r.to(ctx, StateCompensating)
	r.s.deleteAll(context.WithoutCancel(ctx), r, staged, "compensation")
	r.to(ctx, StateCompensated)

	return r.fail(KindConsistency, cause)
}

// cleanup deletes superseded blobs in the background.
func (s *Saga) cleanup(ctx context.Context, r *run, keys []string) {
	if len(keys) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
		defer cancel()
		s.deleteAll(cctx, r, keys, "cleanup")
	}()
}

func (s *Saga) deleteAll(ctx context.Context, r *run, keys []string, phase string) {
	for _, k := range keys {
		if err := s.blobs.Delete(ctx, k); err != nil {
			r.logger.Warn(ctx, "blob delete failed", "key", k, "phase", phase, "orphan", true, "err", err)
			s.observer.BlobOrphaned(r.field.Name, phase)
			continue
		}
		r.logger.Debug(ctx, "blob deleted", "key", k, "phase", phase)
	}
}

// without returns the elements of a that are not in b, keeping order.
func without(a, b []string) []string {
	var out []string
	for _, k := range a {
		if k != "" && !slices.Contains(b, k) {
			out = append(out, k)
		}
	}
	return out
}
