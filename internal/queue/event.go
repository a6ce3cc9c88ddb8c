// Package queue fans change events out to the other server instances over
// RabbitMQ.  Every instance publishes the events it originates to one
// fanout exchange and consumes the others' through an exclusive queue.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-orders/internal/events"
)

// Exchange is the fanout exchange change events travel through.
const Exchange = "restaurant.changes"

// Logger is the subset of the gommon logger the queue writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Encode serializes e for the wire.
func Encode(e events.Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a message body.  Events without topic, tenant or origin
// are rejected.
func Decode(body []byte) (events.Event, error) {
	var e events.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("unmarshal: %w", err)
	}
	if e.Topic == "" || e.TenantID == 0 || e.Origin == "" {
		return e, errors.New("incomplete change event")
	}
	return e, nil
}
