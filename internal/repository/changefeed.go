package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/logger"
)

// ChangeFeed streams the messages collection through a change stream. It needs a replica
// set or sharded cluster.
type ChangeFeed struct {
	col        *mongo.Collection
	log        *zap.Logger
	open       func(ctx context.Context, resumeAfter bson.Raw) (changeStream, error)
	newBackOff func() backoff.BackOff
}

// changeStream is the part of *mongo.ChangeStream the pump reads from.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

func NewChangeFeed(db *mongo.Database, log *zap.Logger) *ChangeFeed {
	f := &ChangeFeed{col: db.Collection(messagesCollection), log: logger.OrNop(log), newBackOff: reopenBackOff}
	f.open = f.watch
	return f
}

// reopenBackOff never gives up: a session keeps its feed until it ends.
func reopenBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

func (f *ChangeFeed) watch(ctx context.Context, resumeAfter bson.Raw) (changeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	stream, err := f.col.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type changeEvent struct {
	OperationType string          `bson:"operationType"`
	FullDocument  *domain.Message `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// toEvent maps a change document to a feed event. ok is false for operations the feed
// does not carry.
func (c changeEvent) toEvent() (dataservice.Event, bool) {
	ev := dataservice.Event{ID: c.DocumentKey.ID}
	switch c.OperationType {
	case "insert":
		ev.Type = dataservice.EventInsert
	case "update", "replace":
		ev.Type = dataservice.EventUpdate
	case "delete":
		ev.Type = dataservice.EventDelete
		return ev, true
	default:
		return ev, false
	}
	if c.FullDocument == nil {
		// the row was removed before the lookup ran
		return ev, false
	}
	c.FullDocument.Normalize()
	ev.Record = c.FullDocument
	return ev, true
}

func (f *ChangeFeed) Subscribe(ctx context.Context, fn func(dataservice.Event)) (dataservice.Subscription, error) {
	stream, err := f.open(ctx, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.pump(ctx, stream, fn)
	}()

	var once sync.Once
	return dataservice.SubscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
		return nil
	}), nil
}

// pump forwards change events to fn and reopens the stream after the resume token when
// it breaks. It only stops when ctx ends.
func (f *ChangeFeed) pump(ctx context.Context, stream changeStream, fn func(dataservice.Event)) {
	for {
		for stream.Next(ctx) {
			var ce changeEvent
			if err := stream.Decode(&ce); err != nil {
				f.log.Warn("decode change event", zap.Error(err))
				continue
			}
			if ev, ok := ce.toEvent(); ok {
				fn(ev)
			}
		}
		token := stream.ResumeToken()
		err := stream.Err()
		_ = stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		f.log.Warn("change stream interrupted", zap.Error(err))

		reopen := func() error {
			s, err := f.open(ctx, token)
			if err != nil {
				return err
			}
			stream = s
			return nil
		}
		notify := func(err error, wait time.Duration) {
			f.log.Debug("reopen change stream", zap.Error(err), zap.Duration("retry_in", wait))
		}
		if err := backoff.RetryNotify(reopen, backoff.WithContext(f.newBackOff(), ctx), notify); err != nil {
			if !errors.Is(err, context.Canceled) {
				f.log.Error("change stream closed", zap.Error(err))
			}
			return
		}
	}
}
