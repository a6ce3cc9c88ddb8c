package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/events"
)

type nopLog struct{}

func (nopLog) Infof(string, ...interface{})  {}
func (nopLog) Warnf(string, ...interface{})  {}
func (nopLog) Errorf(string, ...interface{}) {}

type sinkFunc func(events.Event)

func (f sinkFunc) Publish(e events.Event) { f(e) }

func sampleEvent(origin string) events.Event {
	return events.Event{
		Topic: "orders", Action: events.ActionInsert, TenantID: 3, ID: 9,
		Origin: origin, At: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecode(t *testing.T) {
	body, err := Encode(sampleEvent("a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"orders","action":"insert","tenant_id":3,"id":9,"origin":"a","at":"2024-05-01T12:00:00Z"}`, string(body))

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent("a"), got)

	_, err = Decode([]byte(`{"topic":"orders","tenant_id":3}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestConsumerSkipsOwnOrigin(t *testing.T) {
	var got []events.Event
	c := NewConsumer("", "me", sinkFunc(func(e events.Event) { got = append(got, e) }), nopLog{})

	own, _ := Encode(sampleEvent("me"))
	foreign, _ := Encode(sampleEvent("other"))
	require.NoError(t, c.handle(own))
	require.NoError(t, c.handle(foreign))
	assert.Error(t, c.handle([]byte(`{}`)))

	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].Origin)
}

func TestPublisherHandleFiltersAndBounds(t *testing.T) {
	p := NewPublisher("", "me", 1, nopLog{})
	p.Handle(sampleEvent("other"))
	assert.Len(t, p.out, 0)

	p.Handle(sampleEvent("me"))
	p.Handle(sampleEvent("me")) // dropped
	assert.Len(t, p.out, 1)
}

type fakeChannel struct {
	mu        sync.Mutex
	declared  []string
	published []amqp.Publishing
	failAfter int
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.published) >= f.failAfter {
		return errors.New("channel closed")
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestPublishLoopSendsUntilCancelled(t *testing.T) {
	p := NewPublisher("", "me", 4, nopLog{})
	p.Handle(sampleEvent("me"))
	p.Handle(sampleEvent("me"))

	ch := &fakeChannel{failAfter: -1}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.publishLoop(ctx, ch) }()

	require.Eventually(t, func() bool { return ch.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, ch.closed)
	assert.Equal(t, []string{Exchange + "/fanout"}, ch.declared)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, "me", ch.published[0].AppId)
}

func TestPublishLoopKeepsEventOnFailure(t *testing.T) {
	p := NewPublisher("", "me", 4, nopLog{})
	p.Handle(sampleEvent("me"))

	err := p.publishLoop(context.Background(), &fakeChannel{failAfter: 0})
	require.Error(t, err)
	assert.Len(t, p.out, 1)
}
