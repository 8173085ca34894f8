package state

import (
	"errors"

	"github.com/itohio/microclimate/pkg/sample"
)

// HistoryCapacity is the number of retained history entries.
const HistoryCapacity = 48

// ErrNoTimestamp is returned when appending a reading without a timestamp.
var ErrNoTimestamp = errors.New("history: reading has no timestamp")

// History is a fixed ring of readings, most recent first. A slot with a
// zero timestamp is unfilled.
type History struct {
	entries [HistoryCapacity]sample.Reading
}

// Append shifts every entry one slot older, dropping the oldest, and stores
// r at index 0.
func (h *History) Append(r sample.Reading) error {
	if r.Timestamp == 0 {
		return ErrNoTimestamp
	}
	copy(h.entries[1:], h.entries[:HistoryCapacity-1])
	h.entries[0] = r
	return nil
}

// Entries returns a copy of the filled entries, most recent first.
func (h *History) Entries() []sample.Reading {
	out := make([]sample.Reading, 0, HistoryCapacity)
	for _, e := range h.entries {
		if e.Timestamp == 0 {
			break
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of filled entries.
func (h *History) Len() int {
	n := 0
	for _, e := range h.entries {
		if e.Timestamp == 0 {
			break
		}
		n++
	}
	return n
}
