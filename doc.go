// Package agenticmemory is an embeddable episodic memory store for LLM
// agents: fixed-dimension state embeddings plus categorical/scalar
// metadata, retrieved by vector similarity subject to filter predicates.
// It is tuned for 10^3-10^5 records and in-process, single-writer
// access, not for distributed or multi-tenant use.
//
// # Stores
//
// Store is the in-memory variant, backed by either an approximate
// graph index (sublinear query, sub-100% recall) or an exact
// brute-force index (linear scan, 100% recall):
//
//	s, _ := agenticmemory.New(128)               // approximate, default capacity
//	s, _ := agenticmemory.NewExact(128)           // exact
//	s, _ := agenticmemory.NewWithMaxElements(128, 100000)
//
// DiskStore adds an append-only log and an optional checkpoint so a
// store can be closed and reopened without losing episodes:
//
//	ds, _ := agenticmemory.Open("/var/lib/agent/memory", 128, agenticmemory.OpenOptions{})
//	defer ds.Close()
//
// # Querying
//
//	results, err := s.Query(agenticmemory.QueryOptions{
//	    QueryEmbedding: embedding,
//	    MinReward:      0.5,
//	    TopK:           10,
//	    TagsAny:        []string{"success"},
//	})
//
// # Concurrency
//
// Stores perform no internal locking: Store, Prune*, Save, Load, Open,
// and Checkpoint require exclusive access; Query requires only shared
// access. A caller needing concurrent access wraps a store in its own
// sync.RWMutex following that discipline.
//
// # Errors
//
// Every public operation returns errors typed with a Kind (see
// KindOf): DimensionMismatch, CapacityExceeded, IoError,
// MalformedSnapshot, NotFound, InvalidArgument.
package agenticmemory
