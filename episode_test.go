package agenticmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalTags_DeduplicatesAndSorts(t *testing.T) {
	// Given: tags with duplicates in arbitrary order
	got := canonicalTags([]string{"b", "a", "b", "c", "a"})

	// Then: deduplicated and sorted
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCanonicalTags_NilForEmptyInput(t *testing.T) {
	assert.Nil(t, canonicalTags(nil))
	assert.Nil(t, canonicalTags([]string{}))
}

func TestHasAnyTag_TrueWhenIntersecting(t *testing.T) {
	want := tagSet([]string{"success", "retry"})
	assert.True(t, hasAnyTag([]string{"other", "success"}, want))
	assert.False(t, hasAnyTag([]string{"other"}, want))
}

func TestHasAllTags_RequiresSuperset(t *testing.T) {
	want := tagSet([]string{"success", "retry"})
	assert.True(t, hasAllTags([]string{"success", "retry", "extra"}, want))
	assert.False(t, hasAllTags([]string{"success"}, want))
}
