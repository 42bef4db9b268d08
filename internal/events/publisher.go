// Package events publishes domain events (follow accepted, message created, call logged) to NATS.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// Subjects, relative to the configured prefix.
const (
	FollowRequested        = "follow.requested"
	FollowAccepted         = "follow.accepted"
	MessageRequestCreated  = "message_request.created"
	MessageRequestAccepted = "message_request.accepted"
	MessageCreated         = "message.created"
	CallLogged             = "call.logged"
	UserBlocked            = "user.blocked"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Publisher emits domain events. Failures are reported, never retried.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                               { return nil }

// NATSPublisher publishes JSON envelopes on core NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url. The connection reconnects forever in the background.
func NewNATSPublisher(url, prefix, name string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

// Subject returns the fully qualified subject for a relative one.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := p.Subject(subject)
	payload, err := json.Marshal(Envelope{Subject: full, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", full, err)
	}
	return p.nc.Publish(full, payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
