package paymentevents

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
)

const (
	// DefaultBufferSize is how many recent events a new stream client receives.
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

var ErrHubUnavailable = errors.New("hub_unavailable")

// Hub fans payment events out to the open SSE streams of each company. A
// company only has a room while at least one stream is open; its recent
// events are replayed to streams that join later. Slow streams miss events
// instead of blocking Publish.
type Hub struct {
	mu    sync.Mutex
	rooms map[snowflake.ID]*room

	recentSize int
	chanSize   int
}

type room struct {
	recent []domain.Message
	subs   map[*Subscription]struct{}
}

// Subscription is one open stream. Close it when the client goes away.
type Subscription struct {
	hub       *Hub
	companyID snowflake.ID
	ch        chan domain.Message
	once      sync.Once
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[snowflake.ID]*room),
		recentSize: DefaultBufferSize,
		chanSize:   DefaultSubscriberBuffer,
	}
}

// Publish delivers msg to every open stream of companyID. It is a no-op when
// the company has none.
func (h *Hub) Publish(companyID snowflake.ID, msg domain.Message) {
	if h == nil || companyID == 0 {
		return
	}

	h.mu.Lock()
	r := h.rooms[companyID]
	if r == nil {
		h.mu.Unlock()
		return
	}
	r.recent = append(r.recent, msg)
	if over := len(r.recent) - h.recentSize; over > 0 {
		r.recent = append(r.recent[:0], r.recent[over:]...)
	}
	targets := make([]chan domain.Message, 0, len(r.subs))
	for sub := range r.subs {
		targets = append(targets, sub.ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe opens a stream for companyID and returns the replay backlog.
func (h *Hub) Subscribe(companyID snowflake.ID) (*Subscription, []domain.Message, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	if companyID == 0 {
		return nil, nil, domain.ErrInvalidCompany
	}

	sub := &Subscription{hub: h, companyID: companyID, ch: make(chan domain.Message, h.chanSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[companyID]
	if r == nil {
		r = &room{subs: make(map[*Subscription]struct{})}
		h.rooms[companyID] = r
	}
	r.subs[sub] = struct{}{}
	return sub, append([]domain.Message(nil), r.recent...), nil
}

func (h *Hub) leave(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[sub.companyID]
	if r == nil {
		return
	}
	delete(r.subs, sub)
	if len(r.subs) == 0 {
		delete(h.rooms, sub.companyID)
	}
}

func (s *Subscription) Events() <-chan domain.Message {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() { s.hub.leave(s) })
}
