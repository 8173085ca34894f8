package web

import (
	"bytes"
	"time"

	"github.com/itohio/microclimate/pkg/state"
)

// Renderer produces response bodies.
type Renderer interface {
	Page() ([]byte, error)
	Status() ([]byte, error)
}

// StoreRenderer renders from the shared state store.
type StoreRenderer struct {
	store *state.Store
	now   func() time.Time
}

var _ Renderer = (*StoreRenderer)(nil)

// NewRenderer creates a renderer reading store. now defaults to time.Now.
func NewRenderer(store *state.Store, now func() time.Time) *StoreRenderer {
	if now == nil {
		now = time.Now
	}
	return &StoreRenderer{store: store, now: now}
}

// Page renders the HTML dashboard.
func (r *StoreRenderer) Page() ([]byte, error) {
	entries := r.store.History()
	rows := make([]historyRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, historyRow{
			Timestamp:   e.Timestamp.String(),
			Temperature: e.Temperature,
			Humidity:    e.Humidity,
		})
	}

	var buf bytes.Buffer
	if err := renderPage(&buf, r.store.Status(), rows, r.now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Status renders the JSON status document.
func (r *StoreRenderer) Status() ([]byte, error) {
	return renderJSON(r.store.Status())
}
