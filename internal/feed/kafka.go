package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/logger"
)

// Kafka publishes events to a topic. Subscriptions read every partition directly, without
// a consumer group, so nothing is left behind on the brokers when they end.
type Kafka struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	log     *zap.Logger
	offsets func(ctx context.Context) (map[int]int64, error)
}

func NewKafka(brokers []string, topic string, log *zap.Logger) *Kafka {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	k := &Kafka{brokers: brokers, topic: topic, writer: w, log: logger.OrNop(log)}
	k.offsets = k.lastOffsets
	return k
}

// Publish writes ev keyed by message id so changes to one message stay ordered.
func (k *Kafka) Publish(ctx context.Context, ev dataservice.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ID),
		Value: b,
		Time:  time.Now(),
	})
}

// Subscribe pins one group-less reader per partition at the partition's current end.
// Offsets are resolved before it returns, so every event published afterwards reaches fn.
func (k *Kafka) Subscribe(ctx context.Context, fn func(dataservice.Event)) (dataservice.Subscription, error) {
	offsets, err := k.offsets(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka offsets: %w", err)
	}
	readers, err := k.partitionReaders(offsets)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, r := range readers {
		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			k.consume(ctx, r, fn)
		}(r)
	}

	var once sync.Once
	var closeErr error
	return dataservice.SubscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			wg.Wait()
			for _, r := range readers {
				if err := r.Close(); err != nil && closeErr == nil {
					closeErr = err
				}
			}
		})
		return closeErr
	}), nil
}

func (k *Kafka) partitionReaders(offsets map[int]int64) ([]*kafka.Reader, error) {
	ids := make([]int, 0, len(offsets))
	for id := range offsets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	readers := make([]*kafka.Reader, 0, len(ids))
	for _, id := range ids {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   k.brokers,
			Topic:     k.topic,
			Partition: id,
			MinBytes:  1,
			MaxBytes:  10e6,
		})
		if err := r.SetOffset(offsets[id]); err != nil {
			for _, open := range readers {
				_ = open.Close()
			}
			_ = r.Close()
			return nil, fmt.Errorf("kafka partition %d: %w", id, err)
		}
		readers = append(readers, r)
	}
	return readers, nil
}

// lastOffsets asks each partition leader for the offset the next write will get.
func (k *Kafka) lastOffsets(ctx context.Context) (map[int]int64, error) {
	var (
		partitions []kafka.Partition
		err        error
	)
	for _, broker := range k.brokers {
		partitions, err = k.readPartitions(ctx, broker)
		if err == nil {
			break
		}
		k.log.Warn("kafka metadata", zap.String("broker", broker), zap.Error(err))
	}
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("topic %q has no partitions", k.topic)
	}

	offsets := make(map[int]int64, len(partitions))
	for _, p := range partitions {
		leader := net.JoinHostPort(p.Leader.Host, strconv.Itoa(p.Leader.Port))
		conn, err := kafka.DialLeader(ctx, "tcp", leader, k.topic, p.ID)
		if err != nil {
			return nil, err
		}
		last, err := conn.ReadLastOffset()
		_ = conn.Close()
		if err != nil {
			return nil, err
		}
		offsets[p.ID] = last
	}
	return offsets, nil
}

func (k *Kafka) readPartitions(ctx context.Context, broker string) ([]kafka.Partition, error) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ReadPartitions(k.topic)
}

func (k *Kafka) consume(ctx context.Context, r *kafka.Reader, fn func(dataservice.Event)) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			wait := bo.NextBackOff()
			k.log.Warn("kafka read error", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		ev, err := Decode(m.Value)
		if err != nil {
			k.log.Warn("dropping kafka event", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		fn(ev)
	}
}

func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
