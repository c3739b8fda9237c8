package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/heuritech/gitlab-slack-notifier/models"
)

// SSEEvent is serialised as JSON and pushed over the GET /events stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// OutcomePayload is the payload of "outcome.*" events.
type OutcomePayload struct {
	Delivery string         `json:"delivery"`
	Outcome  models.Outcome `json:"outcome"`
}

// Broadcaster fans SSEEvent values out to all active GET /events subscribers.
// Slow clients are skipped (non-blocking channel send with per-client buffer).
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

// NewBroadcaster returns a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

// subscribe returns a channel that receives ready-to-write SSE data frames.
// The caller must call unsubscribe when the HTTP connection closes.
func (b *Broadcaster) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Subscribers returns the number of connected stream clients.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish broadcasts a dispatch outcome. Its signature matches
// notify.DispatcherOptions.OnOutcome.
func (b *Broadcaster) Publish(deliveryID string, o models.Outcome) {
	b.send(SSEEvent{
		Type:    "outcome." + string(o.Kind),
		Payload: OutcomePayload{Delivery: deliveryID, Outcome: o},
	})
}

// send serialises evt as JSON and fans the SSE frame to all active subscribers.
func (b *Broadcaster) send(evt SSEEvent) {
	raw, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("server: failed to marshal SSE event", "type", evt.Type, "error", err)
		return
	}
	frame := make([]byte, 0, len(raw)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, raw...)
	frame = append(frame, '\n', '\n')

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
			// slow subscriber, drop the frame
		}
	}
}
