package agenticmemory

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/sathvikkurap/agenticmemory/internal/vectorindex"
)

// snapshotDocument is the textual document format for a full-store
// snapshot. The index itself is never serialized: on load it is rebuilt
// by reinserting every episode's embedding in id-sorted order, which is
// why two loads of the same snapshot are query-equivalent even though
// internal keys are never persisted.
//
// Exact is not part of the spec's documented snapshot fields; it is an
// additive field (tolerated as unknown by readers that don't know about
// it) needed so that a store created with NewExact round-trips through
// Save/Load as an exact store rather than silently becoming approximate.
type snapshotDocument struct {
	Dim         int       `json:"dim"`
	MaxElements int       `json:"max_elements"`
	Exact       bool      `json:"exact,omitempty"`
	Episodes    []Episode `json:"episodes"`
}

// Save writes the full store state as a single JSON document at path.
func (s *Store) Save(path string) error {
	episodes := make([]Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		episodes = append(episodes, ep)
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].ID.String() < episodes[j].ID.String()
	})

	doc := snapshotDocument{
		Dim:         s.dim,
		MaxElements: s.maxElements,
		Exact:       s.exact,
		Episodes:    episodes,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return newIoError("Store.Save", "failed to encode snapshot", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newIoError("Store.Save", "failed to write snapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return newIoError("Store.Save", "failed to rename snapshot into place", err)
	}
	return nil
}

// Load reads a snapshot written by Save and reconstructs a query-
// equivalent store: a fresh index of the saved variant is built by
// reinserting embeddings in id-sorted order.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newNotFound("Load", "snapshot file does not exist")
		}
		return nil, newIoError("Load", "failed to read snapshot", err)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newMalformedSnapshot("Load", "snapshot is not valid JSON", err)
	}
	if doc.Dim <= 0 {
		return nil, newMalformedSnapshot("Load", "snapshot dim must be positive", nil)
	}

	for _, ep := range doc.Episodes {
		if len(ep.StateEmbedding) != doc.Dim {
			return nil, newMalformedSnapshot("Load", "episode embedding length disagrees with snapshot dim", nil)
		}
	}

	sort.Slice(doc.Episodes, func(i, j int) bool {
		return doc.Episodes[i].ID.String() < doc.Episodes[j].ID.String()
	})

	var store *Store
	if doc.Exact {
		store, err = NewExact(doc.Dim)
	} else {
		maxElements := doc.MaxElements
		if maxElements <= 0 {
			maxElements = vectorindex.DefaultMaxElements
		}
		store, err = NewWithMaxElements(doc.Dim, maxElements)
	}
	if err != nil {
		return nil, err
	}

	for _, ep := range doc.Episodes {
		id := ep.ID
		key, err := store.idx.Insert(ep.StateEmbedding)
		if err != nil {
			return nil, err
		}
		store.keyToID[key] = id
		store.episodes[id] = ep
	}
	return store, nil
}
