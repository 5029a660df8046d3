package agenticmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(ms int64) *int64 { return &ms }

func TestStore_StoreAssignsIDWhenAbsent(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	id, err := s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 0, 0, 0}, Reward: 1})
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", id.String())
	assert.Equal(t, 1, s.Len())
}

func TestStore_StoreRejectsDimensionMismatch(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	_, err = s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 0}, Reward: 1})
	require.Error(t, err)
	assert.Equal(t, KindDimensionMismatch, KindOf(err))
	assert.Equal(t, 0, s.Len())
}

func TestStore_StoreCanonicalizesTags(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)

	id, err := s.Store(Episode{
		TaskID:         "a",
		StateEmbedding: []float32{1, 0},
		Reward:         1,
		Tags:           []string{"b", "a", "b"},
	})
	require.NoError(t, err)

	got, err := s.Query(QueryOptions{QueryEmbedding: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, []string{"a", "b"}, got[0].Tags)
}

func TestNew_RejectsNonPositiveDim(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestNewWithMaxElements_RejectsNonPositiveMaxElements(t *testing.T) {
	_, err := NewWithMaxElements(4, 0)
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestGraphStore_StoreFailsWithCapacityExceeded(t *testing.T) {
	s, err := NewWithMaxElements(2, 1)
	require.NoError(t, err)

	_, err = s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 0}, Reward: 1})
	require.NoError(t, err)

	_, err = s.Store(Episode{TaskID: "b", StateEmbedding: []float32{0, 1}, Reward: 1})
	require.Error(t, err)
	assert.Equal(t, KindCapacityExceeded, KindOf(err))
}

// S4: prune by time.
func TestPruneOlderThan_RetainsUndefinedAndRecentTimestamps(t *testing.T) {
	s, err := NewExact(2)
	require.NoError(t, err)

	oldID, err := s.Store(Episode{TaskID: "old", StateEmbedding: []float32{1, 0}, Reward: 1, Timestamp: ts(500)})
	require.NoError(t, err)
	midID, err := s.Store(Episode{TaskID: "mid", StateEmbedding: []float32{0, 1}, Reward: 1, Timestamp: ts(1500)})
	require.NoError(t, err)
	untimedID, err := s.Store(Episode{TaskID: "untimed", StateEmbedding: []float32{1, 1}, Reward: 1})
	require.NoError(t, err)

	removed, err := s.PruneOlderThan(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := s.Query(QueryOptions{QueryEmbedding: []float32{0, 0}, TopK: 10})
	require.NoError(t, err)
	ids := episodeIDs(remaining)
	assert.ElementsMatch(t, []string{midID.String(), untimedID.String()}, ids)
	assert.NotContains(t, ids, oldID.String())
}

// S5: prune keep newest.
func TestPruneKeepNewest_RetainsHighestNTimestamps(t *testing.T) {
	s, err := NewExact(2)
	require.NoError(t, err)

	_, err = s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 0}, Reward: 1, Timestamp: ts(100)})
	require.NoError(t, err)
	id200, err := s.Store(Episode{TaskID: "b", StateEmbedding: []float32{0, 1}, Reward: 1, Timestamp: ts(200)})
	require.NoError(t, err)
	id300, err := s.Store(Episode{TaskID: "c", StateEmbedding: []float32{1, 1}, Reward: 1, Timestamp: ts(300)})
	require.NoError(t, err)

	removed, err := s.PruneKeepNewest(2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := s.Query(QueryOptions{QueryEmbedding: []float32{0, 0}, TopK: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id200.String(), id300.String()}, episodeIDs(remaining))
}

func TestPruneKeepNewest_UndefinedTimestampsPrunedFirst(t *testing.T) {
	s, err := NewExact(2)
	require.NoError(t, err)

	untimedID, err := s.Store(Episode{TaskID: "untimed", StateEmbedding: []float32{1, 0}, Reward: 1})
	require.NoError(t, err)
	timedID, err := s.Store(Episode{TaskID: "timed", StateEmbedding: []float32{0, 1}, Reward: 1, Timestamp: ts(1)})
	require.NoError(t, err)

	removed, err := s.PruneKeepNewest(1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := s.Query(QueryOptions{QueryEmbedding: []float32{0, 0}, TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{timedID.String()}, episodeIDs(remaining))
	assert.NotContains(t, episodeIDs(remaining), untimedID.String())
}

func TestPruneKeepHighestReward_TiesBreakByTimestampThenUndefinedLast(t *testing.T) {
	s, err := NewExact(2)
	require.NoError(t, err)

	newer, err := s.Store(Episode{TaskID: "a", StateEmbedding: []float32{1, 0}, Reward: 5, Timestamp: ts(200)})
	require.NoError(t, err)
	older, err := s.Store(Episode{TaskID: "b", StateEmbedding: []float32{0, 1}, Reward: 5, Timestamp: ts(100)})
	require.NoError(t, err)
	untimed, err := s.Store(Episode{TaskID: "c", StateEmbedding: []float32{1, 1}, Reward: 5})
	require.NoError(t, err)
	_, err = s.Store(Episode{TaskID: "d", StateEmbedding: []float32{1, 1}, Reward: 1})
	require.NoError(t, err)

	removed, err := s.PruneKeepHighestReward(3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := s.Query(QueryOptions{QueryEmbedding: []float32{0, 0}, TopK: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{newer.String(), older.String(), untimed.String()}, episodeIDs(remaining))
}

func TestPruneAccounting_RemovedPlusSurvivingEqualsPrior(t *testing.T) {
	s, err := NewExact(2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Store(Episode{TaskID: "a", StateEmbedding: []float32{float32(i), 0}, Reward: 1, Timestamp: ts(int64(i))})
		require.NoError(t, err)
	}

	removed, err := s.PruneKeepNewest(2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, s.Len())
}

func episodeIDs(eps []Episode) []string {
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.ID.String()
	}
	return out
}
