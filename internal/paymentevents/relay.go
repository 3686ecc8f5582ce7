package paymentevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler reacts to outbox events inside the relay process. Handlers must be idempotent:
// an event is handled again when the relay fails before marking it published.
type Handler interface {
	HandlePaymentEvent(ctx context.Context, event domain.Event) error
}

type RelayParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Repo     domain.Repository
	Hub      *Hub
	Redis    *redis.Client `optional:"true"`
	Handlers []Handler     `group:"payment_event_handlers"`
}

// Relay moves outbox rows to Redis pub/sub, or straight to the Hub when Redis is not
// configured, and runs in-process handlers on the way.
type Relay struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	hub      *Hub
	redis    *redis.Client
	handlers []Handler
	interval time.Duration
	batch    int
	prefix   string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(p RelayParams) *Relay {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	interval := p.Config.Events.RelayInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	batch := p.Config.Events.RelayBatchSize
	if batch <= 0 {
		batch = 100
	}
	prefix := p.Config.Events.ChannelPrefix
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	handlers := make([]Handler, 0, len(p.Handlers))
	for _, h := range p.Handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	return &Relay{
		db:       p.DB,
		log:      p.Log.Named("payment.events.relay"),
		clock:    clk,
		repo:     p.Repo,
		hub:      p.Hub,
		redis:    p.Redis,
		handlers: handlers,
		interval: interval,
		batch:    batch,
		prefix:   prefix,
	}
}

// RunOnce relays one batch and returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.repo.ListUnpublished(ctx, r.db, r.batch)
	if err != nil {
		return 0, err
	}

	published := make([]snowflake.ID, 0, len(events))
	for _, event := range events {
		r.handle(ctx, *event)
		if err := r.publish(ctx, *event); err != nil {
			r.log.Warn("payment event publish failed; will retry",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			break
		}
		published = append(published, event.ID)
	}

	if err := r.repo.MarkPublished(ctx, r.db, published, r.clock.Now().UTC()); err != nil {
		return 0, err
	}
	return len(published), nil
}

func (r *Relay) handle(ctx context.Context, event domain.Event) {
	for _, h := range r.handlers {
		if err := h.HandlePaymentEvent(ctx, event); err != nil {
			r.log.Error("payment event handler failed",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}
}

func (r *Relay) publish(ctx context.Context, event domain.Event) error {
	msg := event.Message()
	if r.redis == nil {
		r.hub.Publish(event.CompanyID, msg)
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.redis.Publish(ctx, Channel(r.prefix, event.CompanyID), payload).Err()
}

// Start polls until Stop is called.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			if n, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("payment event relay failed", zap.Error(err))
			} else if n > 0 {
				r.log.Debug("payment events relayed", zap.Int("count", n))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const DefaultChannelPrefix = "vehicleguard:payments"

func Channel(prefix string, companyID snowflake.ID) string {
	return fmt.Sprintf("%s:%s", prefix, companyID.String())
}
