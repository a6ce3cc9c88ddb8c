package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-orders/internal/events"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards locally originated events to the exchange.  Handle
// only enqueues; Run owns the broker connection.
type Publisher struct {
	url    string
	origin string
	log    Logger
	out    chan events.Event
}

// NewPublisher buffers up to size events while the broker is slow or
// unreachable; beyond that events are dropped with a warning.
func NewPublisher(url, origin string, size int, log Logger) *Publisher {
	return &Publisher{url: url, origin: origin, log: log, out: make(chan events.Event, size)}
}

// Handle is subscribed to the bus.  Events that arrived from other
// instances are not sent back.
func (p *Publisher) Handle(e events.Event) {
	if e.Origin != p.origin {
		return
	}
	select {
	case p.out <- e:
	default:
		p.log.Warnf("change-publisher: buffer full, dropping %s/%s id=%d", e.Topic, e.Action, e.ID)
	}
}

// Run publishes queued events until ctx is done, redialing with
// exponential backoff when the connection fails.
func (p *Publisher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			p.log.Warnf("change-publisher: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		ch, err := conn.Channel()
		if err == nil {
			err = p.publishLoop(ctx, ch)
		}
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warnf("change-publisher: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (p *Publisher) publishLoop(ctx context.Context, ch channel) error {
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-p.out:
			if err := publish(ctx, ch, e); err != nil {
				// keep the event for the next connection
				select {
				case p.out <- e:
				default:
				}
				return err
			}
		}
	}
}

func publish(ctx context.Context, ch channel, e events.Event) error {
	body, err := Encode(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		AppId:       e.Origin,
		Body:        body,
	}
	if err := ch.PublishWithContext(ctx, Exchange, "", false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// sleep waits d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
