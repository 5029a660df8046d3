package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ErrorMessage_IncludesOpKindAndMsg(t *testing.T) {
	// Given: a plain error with no wrapped cause
	err := New(DimensionMismatch, "Store.Store", "embedding length mismatch")

	// Then: the message carries op, kind, and msg, but not a cause
	assert.Equal(t, "Store.Store: dimension_mismatch: embedding length mismatch", err.Error())
}

func TestError_ErrorMessage_IncludesWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoError, "DiskStore.Store", "failed to append to log", cause)

	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "io_error")
}

func TestError_Unwrap_ReturnsWrappedCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := Wrap(IoError, "Open", "failed to open directory", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestError_Is_MatchesBySameKindOnly(t *testing.T) {
	// Given: two distinct errors of the same kind, and one of a different kind
	a := New(CapacityExceeded, "Graph.Insert", "at capacity")
	b := New(CapacityExceeded, "Store.Store", "index is full")
	c := New(DimensionMismatch, "Graph.Insert", "wrong length")

	// Then: errors.Is treats same-kind errors as equivalent regardless of op/msg
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOf_ReturnsEmptyForForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("not ours")))
}

func TestKindOf_ReturnsKindForWrappedError(t *testing.T) {
	// Given: an *Error joined with another error via errors.Join
	base := New(NotFound, "Load", "missing file")
	wrapped := errors.Join(errors.New("context"), base)

	assert.Equal(t, NotFound, KindOf(wrapped))
}
