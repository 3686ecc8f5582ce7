package paymentevents

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type SubscriberParams struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Hub    *Hub
	Redis  *redis.Client `optional:"true"`
}

// Subscriber relays Redis pub/sub messages of every company into the local Hub. It owns
// its connection and reconnects with exponential backoff until stopped.
type Subscriber struct {
	log        *zap.Logger
	hub        *Hub
	redis      *redis.Client
	pattern    string
	newBackOff func() backoff.BackOff

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriber(p SubscriberParams) *Subscriber {
	prefix := p.Config.Events.ChannelPrefix
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Subscriber{
		log:        p.Log.Named("payment.events.subscriber"),
		hub:        p.Hub,
		redis:      p.Redis,
		pattern:    prefix + ":*",
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	return b
}

func (s *Subscriber) Enabled() bool {
	return s != nil && s.redis != nil
}

func (s *Subscriber) Start() {
	if !s.Enabled() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.supervise(ctx)
	}()
}

func (s *Subscriber) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
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

func (s *Subscriber) supervise(ctx context.Context) {
	policy := s.newBackOff()
	for {
		err := s.consume(ctx, policy.Reset)
		if ctx.Err() != nil {
			return
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			s.log.Error("payment event subscriber giving up", zap.Error(err))
			return
		}
		s.log.Warn("payment event subscription lost; reconnecting",
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// consume runs one subscription until it fails. connected is called once the
// subscription is confirmed so the backoff restarts from its initial interval.
func (s *Subscriber) consume(ctx context.Context, connected func()) error {
	pubsub := s.redis.PSubscribe(ctx, s.pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	connected()
	s.log.Info("payment event subscriber connected", zap.String("pattern", s.pattern))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		s.dispatch(msg.Channel, msg.Payload)
	}
}

func (s *Subscriber) dispatch(channel, payload string) {
	var msg domain.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.log.Warn("invalid payment event payload", zap.String("channel", channel), zap.Error(err))
		return
	}
	companyID, err := companyFromChannel(channel)
	if err != nil {
		s.log.Warn("invalid payment event channel", zap.String("channel", channel))
		return
	}
	s.hub.Publish(companyID, msg)
}

func companyFromChannel(channel string) (snowflake.ID, error) {
	idx := strings.LastIndex(channel, ":")
	if idx < 0 {
		return 0, domain.ErrInvalidCompany
	}
	id, err := snowflake.ParseString(channel[idx+1:])
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidCompany
	}
	return id, nil
}
