package agenticmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_RecognizesStorePackageErrors(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	_, err = s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 2}, Reward: 1})

	require.Error(t, err)
	assert.Equal(t, KindDimensionMismatch, KindOf(err))
}

func TestKindOf_EmptyForForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "not ours" }
