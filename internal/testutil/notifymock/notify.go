// Package notifymock records outbound mail and events. Safe for concurrent use.
package notifymock

import (
	"context"
	"sync"

	"vault-approval-service/internal/domain/notification"
)

var (
	_ notification.Mailer    = (*Mailer)(nil)
	_ notification.Publisher = (*Publisher)(nil)
)

type Mailer struct {
	// SendFn, when set, decides the result of each send. Messages are
	// recorded either way.
	SendFn func(ctx context.Context, m notification.Message) error

	mu   sync.Mutex
	sent []notification.Message
}

func (m *Mailer) Send(ctx context.Context, msg notification.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, msg)
	}
	return nil
}

func (m *Mailer) Sent() []notification.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Message(nil), m.sent...)
}

// SentTo returns the messages addressed to email.
func (m *Mailer) SentTo(email string) []notification.Message {
	var out []notification.Message
	for _, msg := range m.Sent() {
		if msg.To == email {
			out = append(out, msg)
		}
	}
	return out
}

type Publisher struct {
	PublishFn func(ctx context.Context, e notification.Event) error

	mu     sync.Mutex
	events []notification.Event
}

func (p *Publisher) Publish(ctx context.Context, e notification.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	if p.PublishFn != nil {
		return p.PublishFn(ctx, e)
	}
	return nil
}

func (p *Publisher) Events() []notification.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification.Event(nil), p.events...)
}

// Types lists published event types in order.
func (p *Publisher) Types() []notification.EventType {
	var out []notification.EventType
	for _, e := range p.Events() {
		out = append(out, e.Type)
	}
	return out
}
