// Package notify announces finished publishes so other modules, caches or
// chat bridges can react without polling the bucket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/mdpublish/internal/logfields"
)

// PublishedEvent is sent after a module's publish run ends.
type PublishedEvent struct {
	RunID     string    `json:"run_id"`
	Module    string    `json:"module"`
	Revision  string    `json:"revision,omitempty"`
	Outcome   string    `json:"outcome"`
	Bucket    string    `json:"bucket,omitempty"`
	Root      string    `json:"root,omitempty"`
	Uploaded  int       `json:"uploaded"`
	Deleted   int       `json:"deleted"`
	Stale     []string  `json:"stale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers publish events.
type Notifier interface {
	Published(ctx context.Context, ev PublishedEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Published(context.Context, PublishedEvent) error { return nil }
func (Noop) Close() error                                    { return nil }

// NATSNotifier publishes events on "<subject>.<module>".
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSNotifier connects to url.
func NewNATSNotifier(url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("mdpublish"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("NATS notifier connected", slog.String("url", url), slog.String("subject", subject))
	return &NATSNotifier{conn: conn, subject: subject, logger: logger}, nil
}

// Subject returns the subject an event for module is published on.
func Subject(base, module string) string {
	return base + "." + module
}

// Published sends ev and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Published(ctx context.Context, ev PublishedEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := Subject(n.subject, ev.Module)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	n.logger.Debug("Published notification", logfields.Module(ev.Module), logfields.RunID(ev.RunID), slog.String("subject", subject))
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
