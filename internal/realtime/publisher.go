package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anonto42/pulse/backend/internal/models"
	"github.com/nats-io/nats.go"
)

// Publisher pushes stored notifications to connected clients
type Publisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

// Subject returns the NATS subject a recipient's notifications are published on
func Subject(recipientID string) string {
	return "notifications." + recipientID
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) PublishNotification(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: Subject(n.RecipientID.Hex()),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Notification-Type", string(n.Type))

	slog.Debug("publishing notification", "subject", msg.Subject, "notification_id", n.ID.Hex())
	return p.nc.PublishMsg(msg)
}

// NoopPublisher is used when NATS_URL is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishNotification(context.Context, *models.Notification) error { return nil }
