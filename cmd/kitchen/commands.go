package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/pkg/client"
	"github.com/iliyamo/restaurant-orders/pkg/viewstate"
)

func login(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if email == "" || password == "" {
		return nil, fmt.Errorf("--email and --password (or KITCHEN_EMAIL / KITCHEN_PASSWORD) are required")
	}
	c := client.New(server, nil)
	if _, err := c.Login(cmd.Context(), email, password); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return c, nil
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the unserved orders and follow changes",
		Long:  "Show the unserved orders and follow changes. Type an order id and press enter to mark it served.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cmd.SetContext(ctx)
			c, err := login(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Logout(context.Background()) }()

			b := &board{client: c, orders: newOrders(), out: cmd.OutOrStdout()}
			b.orders.Subscribe(b.show)
			go b.readCommands(ctx, cmd.InOrStdin())
			return b.run(ctx)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <order-id>",
		Short: "Mark an order as served",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			c, err := login(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Logout(context.Background()) }()

			o, err := c.MarkServed(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order #%d served\n", o.ID)
			return nil
		},
	}
}

func newOrders() *viewstate.Collection[model.Order] {
	return viewstate.New(func(o model.Order) uint64 { return o.ID })
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// board keeps the kitchen queue in sync with the server: a full refetch
// after every orders notification, and a reconnect with backoff when the
// feed drops.  Output from the input loop and the feed goes through mu.
type board struct {
	client *client.Client
	orders *viewstate.Collection[model.Order]

	mu  sync.Mutex
	out io.Writer
}

func (b *board) printf(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

func (b *board) show(list []model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	render(b.out, list)
}

// reconnectDelay is the wait before reconnecting after a watch ended
// with err, given the previous wait.  Failed connects double it up to
// maxBackoff; a feed the server had accepted starts over at minBackoff.
func reconnectDelay(prev time.Duration, err error) time.Duration {
	if prev == 0 || errors.Is(err, client.ErrFeedLost) {
		return minBackoff
	}
	return min(prev*2, maxBackoff)
}

func (b *board) refetch(ctx context.Context) error {
	list, err := b.client.Unserved(ctx)
	if err != nil {
		return err
	}
	b.orders.Replace(list)
	return nil
}

// serve marks id served, dropping it from the board at once and putting
// it back when the server refuses.
func (b *board) serve(ctx context.Context, id uint64) error {
	return b.orders.Optimistic(ctx,
		func(c *viewstate.Collection[model.Order]) { c.Remove(id) },
		func(ctx context.Context) error {
			_, err := b.client.MarkServed(ctx, id)
			return err
		})
}

// readCommands treats every input line as an order id to mark served.
func (b *board) readCommands(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "#"))
		if line == "" {
			continue
		}
		id, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			b.printf("not an order id: %q\n", line)
			continue
		}
		if err := b.serve(ctx, id); err != nil {
			b.printf("order #%d not served: %v\n", id, err)
		}
	}
}

func (b *board) run(ctx context.Context) error {
	var delay time.Duration
	for {
		if err := b.refetch(ctx); err != nil && ctx.Err() == nil {
			b.printf("refetch failed: %v\n", err)
		}
		err := b.client.Watch(ctx, []string{string(model.EntityOrder)}, func(events.Event) {
			if err := b.refetch(ctx); err != nil && ctx.Err() == nil {
				b.printf("refetch failed: %v\n", err)
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		delay = reconnectDelay(delay, err)
		b.printf("feed lost: %v; reconnecting in %s\n", err, delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func render(w io.Writer, list []model.Order) {
	fmt.Fprintf(w, "\n== %d to serve ==\n", len(list))
	for _, o := range list {
		where := "to go"
		if o.TableID != nil {
			where = "table id " + strconv.FormatUint(*o.TableID, 10)
		}
		items := make([]string, len(o.Items))
		for i, it := range o.Items {
			items[i] = fmt.Sprintf("%dx meal %d", it.Quantity, it.MealID)
		}
		fmt.Fprintf(w, "#%-5d %-12s %s  %s\n", o.ID, where, o.CreatedAt.Format("15:04"), strings.Join(items, ", "))
	}
}
