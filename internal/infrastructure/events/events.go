package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
)

const TopicInvoiceCreated = "invoice.created"

type Header struct {
	ID          string `json:"id"`
	PublishedAt string `json:"published_at"`
}

func NewHeader() Header {
	return Header{
		ID:          watermill.NewUUID(),
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

type InvoiceCreated struct {
	Header       Header `json:"header"`
	SessionID    string `json:"session_id"`
	InvoiceID    string `json:"invoice_id"`
	CheckoutLink string `json:"checkout_link"`
}

// Publisher emits invoice events on a watermill publisher.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) PublishCreated(ctx context.Context, sessionID string, inv *invoice.Invoice) error {
	event := InvoiceCreated{
		Header:       NewHeader(),
		SessionID:    sessionID,
		InvoiceID:    inv.ID,
		CheckoutLink: inv.CheckoutLink,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal invoice created event: %w", err)
	}

	msg := message.NewMessage(event.Header.ID, payload)
	msg.SetContext(ctx)

	if err := p.pub.Publish(TopicInvoiceCreated, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicInvoiceCreated, err)
	}
	return nil
}

// RunAuditLog logs every invoice created event until ctx is done or the
// subscriber is closed.
func RunAuditLog(ctx context.Context, sub message.Subscriber, logger *slog.Logger) error {
	messages, err := sub.Subscribe(ctx, TopicInvoiceCreated)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicInvoiceCreated, err)
	}

	go func() {
		for msg := range messages {
			var event InvoiceCreated
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Error("malformed invoice created event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			logger.Info("invoice created",
				"event_id", event.Header.ID,
				"session_id", event.SessionID,
				"invoice_id", event.InvoiceID,
				"checkout_link", event.CheckoutLink,
			)
			msg.Ack()
		}
	}()

	return nil
}
