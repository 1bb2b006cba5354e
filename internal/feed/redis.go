package feed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/logger"
)

// Redis fans events out over a pub/sub channel. Subscribers only see events published
// while they are connected.
type Redis struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedis(client *redis.Client, channel string, log *zap.Logger) *Redis {
	return &Redis{client: client, channel: channel, log: logger.OrNop(log)}
}

func (r *Redis) Publish(ctx context.Context, ev dataservice.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

func (r *Redis) Subscribe(ctx context.Context, fn func(dataservice.Event)) (dataservice.Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	// wait for the subscription confirmation so no event published after return is lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				ev, err := Decode([]byte(m.Payload))
				if err != nil {
					r.log.Warn("dropping redis event", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				fn(ev)
			}
		}
	}()

	var once sync.Once
	var closeErr error
	return dataservice.SubscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			closeErr = ps.Close()
			wg.Wait()
		})
		return closeErr
	}), nil
}
