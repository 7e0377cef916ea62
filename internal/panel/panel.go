// Package panel distributes watch-state snapshots. The reconciliation loop
// publishes after every cycle; consumers (IPC status, the CLI) read the
// latest snapshot or subscribe for updates. Delivery is latest-value-wins:
// a slow consumer sees the newest state, never a backlog.
package panel

import (
	"sync"
	"time"
)

// Snapshot is the complete externally visible watch state.
type Snapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	Watching     bool      `json:"watching"`
	User         string    `json:"user,omitempty"`
	SeriesTitle  string    `json:"series_title,omitempty"`
	EpisodeTitle string    `json:"episode_title,omitempty"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceID     string    `json:"source_id,omitempty"`
	Synopsis     string    `json:"synopsis,omitempty"`
	CoverPath    string    `json:"cover_path,omitempty"`
	MediaPath    string    `json:"media_path,omitempty"`
	PlayerState  string    `json:"player_state,omitempty"`
	Paused       bool      `json:"paused,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Hub holds the latest snapshot and fans it out to subscribers.
type Hub struct {
	mu      sync.Mutex
	current Snapshot
	seq     uint64
	subs    map[chan Snapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{})}
}

// Publish replaces the current snapshot and notifies subscribers. A
// subscriber that has not drained its channel keeps only the newest value.
func (h *Hub) Publish(snapshot Snapshot) {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = snapshot
	h.seq++
	for ch := range h.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// Current returns the latest snapshot and how many publishes have happened.
func (h *Hub) Current() (Snapshot, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.seq
}

// Subscribe registers a listener. The returned channel has capacity one and
// receives coalesced snapshots; cancel releases it.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.seq > 0 {
		ch <- h.current
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, ch)
	}
	return ch, cancel
}
