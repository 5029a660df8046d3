package agenticmemory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/sathvikkurap/agenticmemory/internal/vectorindex"
)

const (
	logFileName        = "episodes.jsonl"
	metaFileName       = "meta.json"
	checkpointFileName = "exact_checkpoint.json"
	lockFileName       = ".lock"

	diskSchemaVersion = 1

	indexTypeHNSW  = "hnsw"
	indexTypeExact = "exact"
)

// diskMeta is the meta.json sidecar: everything needed to validate and
// reopen a disk store without replaying the log, when a valid checkpoint
// is present.
type diskMeta struct {
	Dim                 int    `json:"dim"`
	IndexType           string `json:"index_type"`
	MaxElements         int    `json:"max_elements"`
	CheckpointLineCount int    `json:"checkpoint_line_count"`
	Version             int    `json:"version"`
}

// OpenOptions configures Open. OpenExactWithCheckpoint takes no
// OpenOptions: it always uses the exact backend.
type OpenOptions struct {
	// MaxElements caps the approximate index's capacity. Zero means
	// vectorindex.DefaultMaxElements.
	MaxElements int
}

// DiskStore is the durable, disk-backed variant of Store: an append-only
// record log plus a metadata sidecar, with an optional exact-index
// checkpoint that permits skipping log replay on reopen. It reuses the
// in-memory episode store and query evaluator for everything but
// persistence.
type DiskStore struct {
	dir    string
	lock   *flock.Flock
	log    *os.File
	meta   diskMeta
	mem    *Store
	logLen int // number of valid episodes currently represented in the log
}

// Open opens (or creates) a disk store at dir backed by the approximate
// graph index. If dir has no meta.json (as when it is empty or does not
// exist), meta.json is written for dim and any log already in dir is
// loaded; otherwise dir's existing meta.json must agree on dim and index
// variant.
func Open(dir string, dim int, opts OpenOptions) (*DiskStore, error) {
	maxElements := opts.MaxElements
	if maxElements <= 0 {
		maxElements = vectorindex.DefaultMaxElements
	}
	return openDiskStore(dir, dim, indexTypeHNSW, maxElements, false)
}

// OpenExactWithCheckpoint opens (or creates) a disk store at dir backed
// by the exact index, with checkpointing enabled so that Checkpoint can
// write exact_checkpoint.json and later reopens can skip log replay.
func OpenExactWithCheckpoint(dir string, dim int) (*DiskStore, error) {
	return openDiskStore(dir, dim, indexTypeExact, 0, true)
}

func openDiskStore(dir string, dim int, indexType string, maxElements int, checkpointing bool) (*DiskStore, error) {
	if dim <= 0 {
		return nil, newInvalidArgument("Open", "dim must be positive")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newIoError("Open", "failed to create store directory", err)
	}

	lk := flock.New(filepath.Join(dir, lockFileName))
	acquired, err := lk.TryLock()
	if err != nil {
		return nil, newIoError("Open", "failed to acquire directory lock", err)
	}
	if !acquired {
		return nil, newIoError("Open", "store directory is already open by another process", nil)
	}

	ds, err := loadOrInitDiskStore(dir, dim, indexType, maxElements, checkpointing)
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	ds.lock = lk
	return ds, nil
}

func loadOrInitDiskStore(dir string, dim int, indexType string, maxElements int, checkpointing bool) (*DiskStore, error) {
	metaPath := filepath.Join(dir, metaFileName)

	meta, fresh, err := readOrInitMeta(metaPath, dim, indexType, maxElements)
	if err != nil {
		return nil, err
	}
	if !fresh {
		if meta.Dim != dim {
			return nil, newDimensionMismatch("Open", "store directory dim does not match requested dim")
		}
		if meta.IndexType != indexType {
			return nil, newInvalidArgument("Open", "store directory was created with a different index variant")
		}
	}

	mem, err := newMemStoreForDisk(meta)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, logFileName)
	validLog, lineCount, truncated, err := logLineInfo(logPath)
	if err != nil {
		return nil, err
	}
	if truncated {
		// A crash mid-append left bytes on disk past the last complete
		// line. Cut them off now, before the log is reopened for
		// append, or the next Store would fuse its line onto them.
		if err := os.Truncate(logPath, int64(len(validLog))); err != nil {
			return nil, newIoError("Open", "failed to truncate partial trailing log line", err)
		}
	}

	checkpointPath := filepath.Join(dir, checkpointFileName)
	ds := &DiskStore{dir: dir, meta: meta, mem: mem}

	ckptEpisodes, hasCkpt, err := tryReadCheckpoint(checkpointPath, meta)
	if err != nil {
		return nil, err
	}

	switch {
	case hasCkpt && meta.CheckpointLineCount == lineCount:
		// Fast path: the checkpoint covers the whole log. validLog was
		// only scanned for its line count above; none of it is parsed.
		if err := ds.loadEpisodesInto(ckptEpisodes); err != nil {
			return nil, err
		}
	case hasCkpt && meta.CheckpointLineCount < lineCount:
		if err := ds.loadEpisodesInto(ckptEpisodes); err != nil {
			return nil, err
		}
		tail, err := parseLogLines(skipLogLines(validLog, meta.CheckpointLineCount))
		if err != nil {
			return nil, err
		}
		for _, ep := range tail {
			if err := ds.mem.applyStored(ep); err != nil {
				return nil, err
			}
		}
	default:
		episodes, err := parseLogLines(validLog)
		if err != nil {
			return nil, err
		}
		if err := ds.loadEpisodesInto(episodes); err != nil {
			return nil, err
		}
	}
	ds.logLen = lineCount

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, newIoError("Open", "failed to open log file for append", err)
	}
	ds.log = logFile

	return ds, nil
}

// loadEpisodesInto rebuilds ds.mem's index from episodes in id-sorted
// order, matching the deterministic reinsertion the snapshot codec uses.
func (ds *DiskStore) loadEpisodesInto(episodes []Episode) error {
	sorted := make([]Episode, len(episodes))
	copy(sorted, episodes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	for _, ep := range sorted {
		if err := ds.mem.applyStored(ep); err != nil {
			return err
		}
	}
	return nil
}

func readOrInitMeta(metaPath string, dim int, indexType string, maxElements int) (diskMeta, bool, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return diskMeta{}, false, newIoError("Open", "failed to read meta.json", err)
		}
		meta := diskMeta{
			Dim:                 dim,
			IndexType:           indexType,
			MaxElements:         maxElements,
			CheckpointLineCount: 0,
			Version:             diskSchemaVersion,
		}
		if err := writeMetaAtomic(metaPath, meta); err != nil {
			return diskMeta{}, false, err
		}
		return meta, true, nil
	}

	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return diskMeta{}, false, newMalformedSnapshot("Open", "meta.json is not valid JSON", err)
	}
	return meta, false, nil
}

func writeMetaAtomic(metaPath string, meta diskMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return newIoError("writeMeta", "failed to encode meta.json", err)
	}
	if err := atomicWriteFile(metaPath, data); err != nil {
		return err
	}
	return nil
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return newIoError("atomicWriteFile", fmt.Sprintf("failed to create temp file for %s", path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return newIoError("atomicWriteFile", fmt.Sprintf("failed to write temp file for %s", path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return newIoError("atomicWriteFile", fmt.Sprintf("failed to fsync temp file for %s", path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return newIoError("atomicWriteFile", fmt.Sprintf("failed to close temp file for %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return newIoError("atomicWriteFile", fmt.Sprintf("failed to rename temp file into %s", path), err)
	}
	return nil
}

func newMemStoreForDisk(meta diskMeta) (*Store, error) {
	if meta.IndexType == indexTypeExact {
		return NewExact(meta.Dim)
	}
	return NewWithMaxElements(meta.Dim, meta.MaxElements)
}

// logLineInfo scans episodes.jsonl at the byte level and returns the
// valid prefix of the file (every complete, newline-terminated line),
// how many lines that prefix holds, and whether anything was discarded.
//
// A trailing chunk with no newline is a crash mid-write (spec.md §4.5)
// and is dropped. The last complete line is also validated — a crash
// can land right after the newline is flushed but before (or while) the
// JSON itself is fully written — and is dropped too if it fails to
// parse. No earlier line is ever parsed here: this is what lets the
// checkpoint fast path skip the log it covers instead of unmarshaling
// every episode in it just to discover how many lines there are.
//
// The caller must truncate the physical file to len(valid) before
// reopening it for append, or a subsequent Store would fuse its line
// onto the discarded bytes and corrupt the log on the next reopen.
func logLineInfo(path string) (valid []byte, lineCount int, truncated bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, newIoError("readLog", "failed to read episodes.jsonl", err)
	}
	if len(data) == 0 {
		return nil, 0, false, nil
	}

	valid = data
	if data[len(data)-1] != '\n' {
		if idx := bytes.LastIndexByte(data, '\n'); idx >= 0 {
			valid = data[:idx+1]
		} else {
			valid = nil
		}
	}
	if len(valid) > 0 {
		lastStart := bytes.LastIndexByte(valid[:len(valid)-1], '\n') + 1
		var ep Episode
		if json.Unmarshal(valid[lastStart:len(valid)-1], &ep) != nil {
			valid = valid[:lastStart]
		}
	}

	lineCount = bytes.Count(valid, []byte{'\n'})
	truncated = len(valid) != len(data)
	if truncated {
		slog.Warn("discarding partial trailing log line", "path", path, "valid_bytes", len(valid))
	}
	return valid, lineCount, truncated, nil
}

// parseLogLines parses every newline-terminated line in data as an
// Episode. Callers pass only already-validated bytes (see logLineInfo),
// so any parse failure here is a genuine corruption, not an
// in-progress write.
func parseLogLines(data []byte) ([]Episode, error) {
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil, nil
	}
	rawLines := strings.Split(trimmed, "\n")

	episodes := make([]Episode, 0, len(rawLines))
	for _, line := range rawLines {
		var ep Episode
		if err := json.Unmarshal([]byte(line), &ep); err != nil {
			return nil, newMalformedSnapshot("readLog", "episodes.jsonl contains a corrupt line", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// skipLogLines returns the suffix of data after its first n
// newline-terminated lines, so the tail-replay path only ever parses
// the lines a checkpoint doesn't already cover.
func skipLogLines(data []byte, n int) []byte {
	offset := 0
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(data[offset:], '\n')
		if idx < 0 {
			return nil
		}
		offset += idx + 1
	}
	return data[offset:]
}

func tryReadCheckpoint(path string, meta diskMeta) ([]Episode, bool, error) {
	if meta.IndexType != indexTypeExact || meta.CheckpointLineCount == 0 {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, newIoError("readCheckpoint", "failed to read exact_checkpoint.json", err)
	}
	var episodes []Episode
	if err := json.Unmarshal(data, &episodes); err != nil {
		return nil, false, newMalformedSnapshot("readCheckpoint", "exact_checkpoint.json is not valid JSON", err)
	}
	return episodes, true, nil
}

// Dim returns the store's fixed embedding dimension.
func (ds *DiskStore) Dim() int { return ds.mem.Dim() }

// Len returns the number of episodes currently held.
func (ds *DiskStore) Len() int { return ds.mem.Len() }

// Store validates dim, appends one line to the log, and applies the same
// in-memory insertion the in-memory Store uses. If the in-memory
// insertion fails (e.g. CapacityExceeded), the log is truncated back to
// its pre-append length so the log never contains a record that isn't
// also reflected in memory.
func (ds *DiskStore) Store(ep Episode) (uuid.UUID, error) {
	if len(ep.StateEmbedding) != ds.mem.dim {
		return uuid.Nil, newDimensionMismatch("DiskStore.Store", "embedding length does not match store dimension")
	}
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	ep.Tags = canonicalTags(ep.Tags)

	line, err := json.Marshal(ep)
	if err != nil {
		return uuid.Nil, newIoError("DiskStore.Store", "failed to encode episode", err)
	}
	line = append(line, '\n')

	info, err := ds.log.Stat()
	if err != nil {
		return uuid.Nil, newIoError("DiskStore.Store", "failed to stat log file", err)
	}
	preSize := info.Size()

	if _, err := ds.log.Write(line); err != nil {
		return uuid.Nil, newIoError("DiskStore.Store", "failed to append to log", err)
	}

	if err := ds.mem.applyStored(ep); err != nil {
		if truncErr := ds.log.Truncate(preSize); truncErr != nil {
			return uuid.Nil, newIoError("DiskStore.Store", "in-memory insert failed and log truncation also failed", truncErr)
		}
		return uuid.Nil, err
	}
	ds.logLen++
	return ep.ID, nil
}

// Query delegates to the shared query evaluator.
func (ds *DiskStore) Query(opts QueryOptions) ([]Episode, error) {
	return evaluateQuery("DiskStore.Query", ds.mem.idx, ds.mem.dim, ds.mem.episodes, ds.mem.keyToID, opts)
}

// Checkpoint is a no-op for the approximate variant. For the exact
// variant, it atomically serializes the current episode set to
// exact_checkpoint.json in internal-key order, and records the current
// log line count in meta.json, so a later Open can skip replaying the
// log entirely. Internal-key order equals the log's line order for a
// store created fresh or just compacted by a prune; after a reopen the
// episodes loaded from disk hold id-sorted keys, so the checkpoint
// follows id order for them rather than the log's line order.
func (ds *DiskStore) Checkpoint() error {
	if ds.meta.IndexType != indexTypeExact {
		return nil
	}

	episodes := ds.mem.episodesInOriginalOrder()

	data, err := json.Marshal(episodes)
	if err != nil {
		return newIoError("DiskStore.Checkpoint", "failed to encode checkpoint", err)
	}
	if err := atomicWriteFile(filepath.Join(ds.dir, checkpointFileName), data); err != nil {
		return err
	}

	ds.meta.CheckpointLineCount = ds.logLen
	if err := writeMetaAtomic(filepath.Join(ds.dir, metaFileName), ds.meta); err != nil {
		return err
	}
	return nil
}

// PruneOlderThan performs the in-memory bulk rebuild, then compacts the
// log to contain only survivors.
func (ds *DiskStore) PruneOlderThan(cutoffMs int64) (int, error) {
	return ds.pruneAndCompact(func() (int, error) { return ds.mem.PruneOlderThan(cutoffMs) })
}

// PruneKeepNewest performs the in-memory bulk rebuild, then compacts the
// log to contain only survivors.
func (ds *DiskStore) PruneKeepNewest(n int) (int, error) {
	return ds.pruneAndCompact(func() (int, error) { return ds.mem.PruneKeepNewest(n) })
}

// PruneKeepHighestReward performs the in-memory bulk rebuild, then
// compacts the log to contain only survivors.
func (ds *DiskStore) PruneKeepHighestReward(n int) (int, error) {
	return ds.pruneAndCompact(func() (int, error) { return ds.mem.PruneKeepHighestReward(n) })
}

// pruneAndCompact runs prune against the in-memory store (which rebuilds
// the index and invalidates internal keys), then rewrites episodes.jsonl
// to hold exactly the survivors in the rebuild's id-sorted order, and
// invalidates any exact-index checkpoint: its log-position watermark no
// longer means anything once keys have been reassigned.
func (ds *DiskStore) pruneAndCompact(prune func() (int, error)) (int, error) {
	removed, err := prune()
	if err != nil {
		return 0, err
	}

	survivors := make([]Episode, 0, len(ds.mem.episodes))
	for _, ep := range ds.mem.episodes {
		survivors = append(survivors, ep)
	}
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].ID.String() < survivors[j].ID.String()
	})

	var buf []byte
	for _, ep := range survivors {
		line, err := json.Marshal(ep)
		if err != nil {
			return 0, newIoError("DiskStore.prune", "failed to encode episode during compaction", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	logPath := filepath.Join(ds.dir, logFileName)
	if err := ds.log.Close(); err != nil {
		return 0, newIoError("DiskStore.prune", "failed to close log before compaction", err)
	}
	if err := atomicWriteFile(logPath, buf); err != nil {
		return 0, err
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, newIoError("DiskStore.prune", "failed to reopen log after compaction", err)
	}
	ds.log = logFile
	ds.logLen = len(survivors)

	checkpointPath := filepath.Join(ds.dir, checkpointFileName)
	if err := os.Remove(checkpointPath); err != nil && !os.IsNotExist(err) {
		return 0, newIoError("DiskStore.prune", "failed to remove stale checkpoint", err)
	}
	ds.meta.CheckpointLineCount = 0
	ds.meta.MaxElements = ds.mem.maxElements
	if err := writeMetaAtomic(filepath.Join(ds.dir, metaFileName), ds.meta); err != nil {
		return 0, err
	}

	return removed, nil
}

// Close releases the log file handle and the directory lock.
func (ds *DiskStore) Close() error {
	var firstErr error
	if ds.log != nil {
		if err := ds.log.Close(); err != nil {
			firstErr = newIoError("DiskStore.Close", "failed to close log file", err)
		}
		ds.log = nil
	}
	if ds.lock != nil {
		if err := ds.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = newIoError("DiskStore.Close", "failed to release directory lock", err)
		}
	}
	return firstErr
}
