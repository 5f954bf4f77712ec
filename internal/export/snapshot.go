package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/theirongolddev/opsdash/internal/model"
)

// Snapshot is the JSON document of all collections with their aggregates.
type Snapshot struct {
	ExportedAt  time.Time         `json:"exportedAt"`
	Source      string            `json:"source,omitempty"`
	Collections model.Collections `json:"collections"`
	Aggregates  model.Aggregates  `json:"aggregates"`
}

// WriteSnapshot encodes s as indented JSON.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return s, nil
}

// SnapshotKey names an uploaded snapshot by its export time.
func SnapshotKey(prefix string, at time.Time) string {
	name := "opsdash-snapshot-" + at.UTC().Format("20060102T150405Z") + ".json"
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
