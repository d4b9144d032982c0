package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/minirag/internal/chunk"
)

// SnapshotFileName is the index cache file inside the data directory.
const SnapshotFileName = "index.json"

// Snapshot is the on-disk form of the index. It is a cache: a missing,
// unreadable or stale snapshot is rebuilt from chunk text.
type Snapshot struct {
	Policy      string                    `json:"policy"`
	Fingerprint string                    `json:"fingerprint"`
	SavedAt     time.Time                 `json:"saved_at"`
	Forward     map[string]map[string]int `json:"forward"`
}

// Save writes the index atomically to path, stamped with the content
// fingerprint of chunks, the chunk set the index was built from.
func (ix *Indexer) Save(path string, chunks []*chunk.Chunk) error {
	snap := Snapshot{
		Policy:      PolicyVersion,
		Fingerprint: ContentFingerprint(chunks),
		SavedAt:     time.Now().UTC(),
		Forward:     ix.forward,
	}

	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save index snapshot: %w", err)
	}
	return nil
}

// Load replaces the index contents with the snapshot at path, but only if
// the snapshot was written under the current policy from exactly chunks:
// same ids, offsets and text. It reports whether the snapshot was used;
// on false the caller rebuilds.
func (ix *Indexer) Load(path string, chunks []*chunk.Chunk) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read index snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt cache is not an error; caller rebuilds.
		return false, nil
	}
	if snap.Policy != PolicyVersion || snap.Fingerprint != ContentFingerprint(chunks) {
		return false, nil
	}

	postings := make(map[string]map[string]int)
	forward := make(map[string]map[string]int, len(snap.Forward))
	for id, kws := range snap.Forward {
		if kws == nil {
			kws = make(map[string]int)
		}
		forward[id] = kws
		for kw, tf := range kws {
			p := postings[kw]
			if p == nil {
				p = make(map[string]int)
				postings[kw] = p
			}
			p[id] = tf
		}
	}

	// The stamp says what the snapshot was built from; recheck that the
	// entries it holds cover the same ids.
	ix.postings, ix.forward = postings, forward
	if ix.Fingerprint() != Fingerprint(sortedIDs(chunks)) {
		ix.Rebuild(nil)
		return false, nil
	}
	return true, nil
}
