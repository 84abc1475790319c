package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/verte-zerg/hpctrend/internal/model"
)

type entry struct {
	snap model.Snapshot
	doc  *Document
}

// Collection holds parsed snapshots ordered by capture date.
type Collection struct {
	namespace string
	entries   []entry
}

// NewCollection returns an empty collection whose records live in namespace.
func NewCollection(namespace string) *Collection {
	return &Collection{namespace: namespace}
}

// Add inserts a snapshot, keeping date order.
func (c *Collection) Add(snap model.Snapshot, doc *Document) error {
	idx := sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].snap.Date.Before(snap.Date)
	})
	if idx < len(c.entries) && c.entries[idx].snap.Date.Equal(snap.Date) {
		return fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateSnapshot,
			snap.Date.Format("2006-01"), c.entries[idx].snap.Path, snap.Path)
	}
	c.entries = append(c.entries, entry{})
	copy(c.entries[idx+1:], c.entries[idx:])
	c.entries[idx] = entry{snap: snap, doc: doc}
	return nil
}

// Len returns the number of snapshots.
func (c *Collection) Len() int {
	return len(c.entries)
}

// Dates returns capture dates in ascending order.
func (c *Collection) Dates() []time.Time {
	out := make([]time.Time, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.snap.Date
	}
	return out
}

// Snapshots returns snapshot metadata in ascending date order.
func (c *Collection) Snapshots() []model.Snapshot {
	out := make([]model.Snapshot, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.snap
	}
	return out
}

// Series collects field values for rank across all snapshots, oldest first.
// Snapshots without that rank are skipped. When a snapshot lists the rank
// more than once, the first record in document order is used.
func (c *Collection) Series(rank int, field string) (model.Series, error) {
	series := model.Series{
		Rank:   rank,
		Field:  field,
		Dates:  []time.Time{},
		Values: []string{},
	}
	for _, e := range c.entries {
		value, ok, err := c.lookup(e.doc, rank, field)
		if err != nil {
			return model.Series{}, fmt.Errorf("%s: %w", e.snap.Path, err)
		}
		if !ok {
			continue
		}
		series.Dates = append(series.Dates, e.snap.Date)
		series.Values = append(series.Values, value)
	}
	return series, nil
}

func (c *Collection) lookup(doc *Document, rank int, field string) (string, bool, error) {
	for i, record := range doc.Root.Children {
		rankNode := record.Find(c.namespace, "rank")
		if rankNode == nil {
			return "", false, fmt.Errorf("%w: rank in record %d", ErrMissingElement, i+1)
		}
		got, err := strconv.Atoi(rankNode.Text)
		if err != nil {
			return "", false, fmt.Errorf("%w: %q in record %d", ErrBadRank, rankNode.Text, i+1)
		}
		if got != rank {
			continue
		}
		fieldNode := record.Find(c.namespace, field)
		if fieldNode == nil {
			return "", false, fmt.Errorf("%w: %s for rank %d", ErrMissingElement, field, rank)
		}
		return fieldNode.Text, true, nil
	}
	return "", false, nil
}
