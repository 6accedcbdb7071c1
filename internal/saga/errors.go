package saga

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// Kind tells callers which phase failed and therefore what is safe to retry.
type Kind int

const (
	// KindValidation: the input was rejected before any side effect.
	KindValidation Kind = iota + 1
	// KindStorage: a blob could not be staged. The record is untouched.
	KindStorage
	// KindConsistency: the record update failed after staging. Staged blobs
	// were compensated.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindConsistency:
		return "consistency"
	}
	return "unknown"
}

var (
	ErrMissingPayload   = errors.New("missing payload")
	ErrWrongCardinality = errors.New("operation does not match field cardinality")
	ErrEmptyKey         = errors.New("empty storage key")
	ErrDuplicateKey     = errors.New("storage key listed twice")
	// ErrUnknownKey means a kept key is not part of the field's current value.
	ErrUnknownKey = errors.New("kept key is not referenced by the record")
)

// Error is the tagged failure returned by every saga operation.
type Error struct {
	Kind     Kind
	Op       string
	Field    string
	RecordID string
	// State is the terminal state the saga reached.
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("saga %s %s on %q: %s error in state %s: %v",
		e.Op, e.Field, e.RecordID, e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func IsValidation(err error) bool  { return kindOf(err) == KindValidation }
func IsStorage(err error) bool     { return kindOf(err) == KindStorage }
func IsConsistency(err error) bool { return kindOf(err) == KindConsistency }

// Retryable reports whether repeating the whole operation may succeed:
// a transient storage failure, or a commit that lost repeated races.
func Retryable(err error) bool {
	switch kindOf(err) {
	case KindStorage:
		return blobstore.IsTransient(err)
	case KindConsistency:
		return errors.Is(err, common.ErrVersionConflict)
	}
	return false
}
