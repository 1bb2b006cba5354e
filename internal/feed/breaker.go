package feed

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/logger"
)

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerPublisher stops publishing to a transport that keeps failing, so message writes
// do not wait on a dead broker. Rejected events are dropped; the stored record stays
// authoritative.
type BreakerPublisher struct {
	next dataservice.Publisher
	cb   *gobreaker.CircuitBreaker
	log  *zap.Logger
}

func NewBreakerPublisher(name string, next dataservice.Publisher, cfg BreakerConfig, log *zap.Logger) *BreakerPublisher {
	log = logger.OrNop(log)
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("feed breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerPublisher{next: next, cb: gobreaker.NewCircuitBreaker(st), log: log}
}

func (b *BreakerPublisher) Publish(ctx context.Context, ev dataservice.Event) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, ev)
	})
	return err
}

func (b *BreakerPublisher) State() gobreaker.State { return b.cb.State() }
