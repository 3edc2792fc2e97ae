package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// reconnectDelay paces reconnect attempts after a dropped listening
// connection.
const reconnectDelay = 5 * time.Second

// DayListener consumes day change notifications over a dedicated
// connection. The pool is not usable here: LISTEN binds to a single
// session, so the listener dials its own.
type DayListener struct {
	dsn string
}

// NewDayListener creates a listener that will dial dsn.
func NewDayListener(dsn string) *DayListener {
	return &DayListener{dsn: dsn}
}

// Run listens on the change channel and invokes handle for every
// decoded notification until ctx is canceled. Connection failures are
// logged and retried; Run only returns on cancellation.
func (l *DayListener) Run(ctx context.Context, handle func(Notification)) {
	for {
		if err := l.listen(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Change listener disconnected, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// listen holds one connection for its lifetime, dispatching
// notifications as they arrive.
func (l *DayListener) listen(ctx context.Context, handle func(Notification)) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("failed to dial listener connection: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", ChannelDayChanged)); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChannelDayChanged, err)
	}

	log.Info().Str("channel", ChannelDayChanged).Msg("Subscribed to day change notifications")

	for {
		msg, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			log.Warn().Err(err).Str("payload", msg.Payload).Msg("Malformed change notification dropped")
			continue
		}
		handle(n)
	}
}
