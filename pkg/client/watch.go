package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/restaurant-orders/internal/events"
)

// ErrFeedLost wraps the error that ends a watch after the server had
// accepted it.
var ErrFeedLost = errors.New("change feed lost")

// Watch subscribes to the change feed for topics (all topics when empty)
// and calls onEvent for every notification until ctx is done or the
// connection drops.  It returns nil only when ctx ends the watch.
// Notifications carry no row data; callers refetch what they show.
func (c *Client) Watch(ctx context.Context, topics []string, onEvent func(events.Event)) error {
	tok := c.AccessToken()
	if tok == "" {
		return ErrNotLoggedIn
	}
	u, err := url.Parse(c.baseURL + "/v1/realtime")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if len(topics) > 0 {
		u.RawQuery = url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "realtime upgrade refused"}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrFeedLost, err)
		}
		onEvent(e)
	}
}
