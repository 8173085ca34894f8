package state

import (
	"sync"

	"github.com/itohio/microclimate/pkg/sample"
)

// Feed distributes readings to any number of subscribers. Each subscriber
// has a single-slot mailbox holding the latest unconsumed reading, so every
// subscriber observes the newest reading and a slow one never blocks the
// publisher or the others.
type Feed struct {
	mu   sync.Mutex
	subs []chan sample.Reading
}

// Subscribe returns a new mailbox. It must be called before publishing
// starts for the subscriber to see the first reading.
func (f *Feed) Subscribe() <-chan sample.Reading {
	ch := make(chan sample.Reading, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// Publish replaces each subscriber's pending reading with r. It never blocks.
func (f *Feed) Publish(r sample.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- r:
			continue
		default:
		}
		// Mailbox full: drop the stale reading and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r:
		default:
		}
	}
}
