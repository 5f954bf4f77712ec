package syncer

import (
	"bytes"

	"github.com/theirongolddev/opsdash/internal/transform"
)

// Delta describes how a collection changed between two snapshots.
type Delta struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Diff compares two snapshots of one collection. Removed is exactly the ids
// of prev missing from next, in prev order; Added and Updated follow next
// order.
func Diff(prev, next []transform.Item) Delta {
	before := make(map[string][]byte, len(prev))
	for _, it := range prev {
		before[it.ID] = it.Entity
	}
	after := make(map[string]struct{}, len(next))

	var d Delta
	for _, it := range next {
		after[it.ID] = struct{}{}
		old, ok := before[it.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, it.ID)
		case !bytes.Equal(old, it.Entity):
			d.Updated = append(d.Updated, it.ID)
		}
	}
	for _, it := range prev {
		if _, ok := after[it.ID]; !ok {
			d.Removed = append(d.Removed, it.ID)
			after[it.ID] = struct{}{} // report duplicates once
		}
	}
	return d
}
