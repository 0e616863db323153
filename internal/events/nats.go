package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is prepended to every event name.
const DefaultSubjectPrefix = "verdandi"

// Header names set on every published message.
const (
	HeaderEventName   = "Verdandi-Event"
	HeaderPublishedAt = "Verdandi-Published-At"
)

// NATSConfig holds connection settings for the event bus.
type NATSConfig struct {
	URL           string
	ClientName    string
	SubjectPrefix string
	// FlushTimeout bounds how long Publish waits for the server to
	// acknowledge the write. Zero skips the flush.
	FlushTimeout time.Duration
}

// Connect dials NATS and keeps reconnecting forever in the background.
func Connect(cfg NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	name := cfg.ClientName
	if name == "" {
		name = "verdandi"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "events.connect", "failed to connect to NATS")
	}
	return nc, nil
}

// NATSPublisher publishes each event as JSON on <prefix>.<event name>.
type NATSPublisher struct {
	conn         *nats.Conn
	prefix       string
	flushTimeout time.Duration
}

func NewNATSPublisher(conn *nats.Conn, cfg NATSConfig) *NATSPublisher {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix, flushTimeout: cfg.FlushTimeout}
}

var _ domain.EventPublisher = (*NATSPublisher)(nil)

func (p *NATSPublisher) Publish(ctx context.Context, event domain.Event) error {
	msg, err := encode(p.prefix, event)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "events.publish", "failed to publish "+event.EventName())
	}
	if p.flushTimeout > 0 {
		fctx, cancel := context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
		if err := p.conn.FlushWithContext(fctx); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, "events.publish", "failed to flush "+event.EventName())
		}
	}
	return nil
}

// Subject returns the subject an event name is published on.
func Subject(prefix, eventName string) string {
	return strings.TrimSuffix(prefix, ".") + "." + eventName
}

func encode(prefix string, event domain.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "events.encode", "failed to encode "+event.EventName())
	}
	msg := nats.NewMsg(Subject(prefix, event.EventName()))
	msg.Data = data
	msg.Header.Set(HeaderEventName, event.EventName())
	msg.Header.Set(HeaderPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))
	return msg, nil
}
