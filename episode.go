package agenticmemory

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// Step is one entry in an episode's trace: the action taken at a given
// index, the observation that followed, and the reward attributed to
// that single step. Steps are opaque to the query evaluator; they are
// preserved verbatim on save/load.
type Step struct {
	Index       int     `json:"index"`
	Action      string  `json:"action"`
	Observation string  `json:"observation"`
	StepReward  float32 `json:"step_reward"`
}

// Episode is one recorded agent experience: an embedding, a reward, and
// the categorical/scalar attributes the query evaluator filters and
// orders on. Episodes are never mutated in place once stored; they are
// replaced wholesale by the bulk-rebuild pruning operations.
type Episode struct {
	ID             uuid.UUID       `json:"id"`
	TaskID         string          `json:"task_id"`
	StateEmbedding []float32       `json:"state_embedding"`
	Reward         float32         `json:"reward"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Timestamp      *int64          `json:"timestamp,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Source         string          `json:"source,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Steps          []Step          `json:"steps,omitempty"`
}

// canonicalTags returns tags deduplicated and sorted, so that membership
// tests and equality comparisons don't care about insertion order or
// repeats. The spec treats tags as a set; this is where that set is
// actually enforced.
func canonicalTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// hasAnyTag reports whether epTags intersects want.
func hasAnyTag(epTags []string, want map[string]struct{}) bool {
	for _, t := range epTags {
		if _, ok := want[t]; ok {
			return true
		}
	}
	return false
}

// hasAllTags reports whether epTags is a superset of want.
func hasAllTags(epTags []string, want map[string]struct{}) bool {
	have := tagSet(epTags)
	for t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
