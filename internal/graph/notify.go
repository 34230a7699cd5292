package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Notifier publishes emergency safety alerts over Postgres LISTEN/NOTIFY
// so a dashboard or on-call process can react without polling. The
// payload is the child identifier the alert belongs to.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
}

// NewNotifier constructs a Notifier. The DSN is needed because lib/pq's
// listener opens its own connection, separate from the query pool.
func NewNotifier(db *sql.DB, dsn, channel string) *Notifier {
	return &Notifier{DB: db, DSN: dsn, Channel: channel}
}

// NotifyEmergency publishes an alert for the given child.
func (n *Notifier) NotifyEmergency(ctx context.Context, childID string) error {
	channel := pq.QuoteIdentifier(n.Channel)
	_, err := n.DB.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, %s", channel, pq.QuoteLiteral(childID)))
	return err
}

// Listen yields child identifiers as alerts arrive. The returned channel
// closes when ctx is cancelled.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	listener := pq.NewListener(n.DSN, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	ch := make(chan string)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-listener.Notify:
				if ev == nil {
					// reconnect event; the listener re-subscribes itself
					continue
				}
				select {
				case ch <- ev.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
