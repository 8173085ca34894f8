package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/microclimate/pkg/sample"
)

func reading(i int) sample.Reading {
	return sample.Reading{
		Temperature: float64(i),
		Humidity:    float64(i) / 2,
		Timestamp:   sample.Stamp(202602270000 + i),
	}
}

func TestHistory_Append(t *testing.T) {
	var h History
	assert.Equal(t, 0, h.Len())

	require.NoError(t, h.Append(reading(1)))
	require.NoError(t, h.Append(reading(2)))

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, reading(2), entries[0])
	assert.Equal(t, reading(1), entries[1])
}

func TestHistory_Eviction(t *testing.T) {
	var h History
	for i := 1; i <= HistoryCapacity; i++ {
		require.NoError(t, h.Append(reading(i)))
	}
	require.Equal(t, HistoryCapacity, h.Len())
	assert.Equal(t, reading(1), h.Entries()[HistoryCapacity-1])

	require.NoError(t, h.Append(reading(49)))

	entries := h.Entries()
	require.Len(t, entries, HistoryCapacity)
	assert.Equal(t, reading(49), entries[0])
	assert.Equal(t, reading(2), entries[HistoryCapacity-1])
	assert.NotContains(t, entries, reading(1))
}

func TestHistory_RejectsZeroTimestamp(t *testing.T) {
	var h History
	err := h.Append(sample.Reading{Temperature: 20})
	assert.ErrorIs(t, err, ErrNoTimestamp)
	assert.Equal(t, 0, h.Len())
}

func TestHistory_EntriesCopy(t *testing.T) {
	var h History
	require.NoError(t, h.Append(reading(1)))

	entries := h.Entries()
	entries[0].Temperature = 100
	assert.Equal(t, 1.0, h.Entries()[0].Temperature)
}
