// Package pubsub fans session events out to connected spectators.
//
// The broker is in-process: subscribers live for as long as their WebSocket
// connection and state is reconstructed from storage on reconnect, so
// durability is not a goal here.
package pubsub

import (
	"context"
	"sync"

	"github.com/Plabrum/trackstar/internal/game/domain"
)

// EventType names a session event.
type EventType string

const (
	EventPlayerJoined        EventType = "player_joined"
	EventRoundStart          EventType = "round_start"
	EventBuzz                EventType = "buzz"
	EventRoundResult         EventType = "round_result"
	EventAllAnswersSubmitted EventType = "all_answers_submitted"
	EventAnswersFinalized    EventType = "answers_finalized"
	EventReveal              EventType = "reveal"
	EventStateChange         EventType = "state_change"
	EventGameEnd             EventType = "game_end"
)

// Event is a single session notification. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	State     string          `json:"state,omitempty"`
	Round     int             `json:"round,omitempty"`
	TrackID   string          `json:"track_id,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Verdict   *bool           `json:"verdict,omitempty"`
	Points    *float64        `json:"points,omitempty"`
	Players   []domain.Player `json:"players,omitempty"`
	Answers   []domain.Answer `json:"answers,omitempty"`
}

// Publisher is the sending half of the broker, all the orchestrator needs.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// subscriberBuffer bounds the per-subscriber channel. Slow consumers drop
// events rather than stall the publisher.
const subscriberBuffer = 16

// Broker is an in-process publish/subscribe hub keyed by session id.
type Broker struct {
	mu       sync.RWMutex
	sessions map[string]map[chan Event]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{sessions: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one session's events. The returned
// cancel function removes the subscription and closes the channel.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.sessions[sessionID]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.sessions[sessionID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.sessions[sessionID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.sessions, sessionID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its session. Delivery is
// best effort: a subscriber with a full buffer misses the event.
func (b *Broker) Publish(ctx context.Context, event Event) {
	if ctx.Err() != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.sessions[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many listeners a session currently has.
func (b *Broker) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[sessionID])
}

var _ Publisher = (*Broker)(nil)
