// Package nats mirrors run events to NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is prepended to every subject.
const DefaultSubjectPrefix = "switchboard.events"

// Publisher is the part of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink is a ports.EventSink publishing each event as JSON on
// <prefix>.<thread_id>.<event type>.
type Sink struct {
	pub    Publisher
	prefix string
	conn   *nats.Conn
}

// Option configures the Sink.
type Option func(*Sink)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.prefix = strings.TrimSuffix(prefix, ".")
		}
	}
}

// NewSink wraps an existing publisher.
func NewSink(pub Publisher, opts ...Option) *Sink {
	s := &Sink{pub: pub, prefix: DefaultSubjectPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials url and returns a sink that owns the connection.
func Connect(url string, opts ...Option) (*Sink, error) {
	nc, err := nats.Connect(url, nats.Name("switchboard"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	s := NewSink(nc, opts...)
	s.conn = nc
	return s, nil
}

// Subject returns where ev is published.
func (s *Sink) Subject(ev domain.Event) string {
	thread := ev.ThreadID
	if thread == "" {
		thread = "_"
	}
	return fmt.Sprintf("%s.%s.%s", s.prefix, thread, ev.Type)
}

// Publish implements ports.EventSink.
func (s *Sink) Publish(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.pub.Publish(s.Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close drains the connection when the sink owns one.
func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
