package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Connect dials NATS with unlimited reconnects.
func Connect(url, name string, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats_disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats_reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes each task to <prefix>.<task name>.
type NATSPublisher struct {
	conn   msgPublisher
	prefix string
	log    *zap.Logger
}

func NewNATSPublisher(conn msgPublisher, prefix string, log *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "gottabike.tasks"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, log: log}
}

// Subject returns the subject a task named name is published on.
func (p *NATSPublisher) Subject(name string) string {
	return p.prefix + "." + name
}

func (p *NATSPublisher) Enqueue(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	msg := nats.NewMsg(p.Subject(t.Name))
	msg.Data = data
	// JetStream uses this header to drop duplicate publishes.
	msg.Header.Set(nats.MsgIdHdr, t.ID)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.log.Info("task_enqueued", zap.String("task", t.Name), zap.String("task_id", t.ID), zap.String("subject", msg.Subject))
	return nil
}

// LogPublisher only records tasks. It is used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Enqueue(_ context.Context, t Task) error {
	p.log.Info("task_dropped",
		zap.String("task", t.Name),
		zap.String("task_id", t.ID),
		zap.String("reason", "no broker configured"),
	)
	return nil
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
