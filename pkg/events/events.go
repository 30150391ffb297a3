// Package events publishes domain events to NATS after ledger changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/pkg/config"
)

// Event types. The subject is "<prefix>.<type>".
const (
	EnrollmentCreated   = "enrollment.created"
	EnrollmentWithdrawn = "enrollment.withdrawn"
	GradesRecorded      = "grades.recorded"
	AttendanceTaken     = "attendance.taken"
)

// Event is the JSON body sent on the wire.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	ActorID    string      `json:"actor_id,omitempty"`
	Payload    interface{} `json:"payload"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType, actorID string, payload interface{}) error
	Close() error
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events on a core NATS connection.
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// New returns a NATS-backed publisher, or a no-op one when no URL is set.
func New(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NATSURL == "" {
		logger.Info("event publishing disabled")
		return NopPublisher{}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("casa-azul-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info("nats publisher initialised", zap.String("url", cfg.NATSURL), zap.String("prefix", cfg.SubjectPrefix))
	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(c conn, prefix string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the full subject for an event type.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Publish marshals and sends one event.
func (p *NATSPublisher) Publish(ctx context.Context, eventType, actorID string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		ActorID:    actorID,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Close drains pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

func (NopPublisher) Close() error { return nil }
