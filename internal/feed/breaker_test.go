package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
)

type flakyPublisher struct {
	err   error
	calls int
}

func (p *flakyPublisher) Publish(context.Context, dataservice.Event) error {
	p.calls++
	return p.err
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	down := errors.New("broker down")
	next := &flakyPublisher{err: down}
	b := NewBreakerPublisher("test", next, BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, nil)
	ev := dataservice.Event{Type: dataservice.EventDelete, ID: "m1"}

	assert.ErrorIs(t, b.Publish(context.Background(), ev), down)
	assert.ErrorIs(t, b.Publish(context.Background(), ev), down)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	assert.ErrorIs(t, b.Publish(context.Background(), ev), gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerPassesThrough(t *testing.T) {
	next := &flakyPublisher{}
	b := NewBreakerPublisher("test", next, BreakerConfig{}, nil)
	assert.NoError(t, b.Publish(context.Background(), dataservice.Event{Type: dataservice.EventDelete, ID: "m1"}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 1, next.calls)
}
