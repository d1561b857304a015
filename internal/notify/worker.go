// Package notify drains the outbox written by the stores and delivers
// best-effort notifications. Delivery failures never surface back to the
// mutation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	Phone string
	Email string
}

type Notification struct {
	NotificationID string
	Channel        string
	Recipient      string
	Body           string
	Status         string
}

type OutboxEvent struct {
	EventID   string
	StoreID   string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type Store interface {
	GetLastOffset(ctx context.Context) (time.Time, error)
	UpdateOffset(ctx context.Context, last time.Time) error
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
	GetContact(ctx context.Context, employeeID string) (Contact, error)
	InsertNotification(ctx context.Context, n Notification) error
}

type Worker struct {
	store     Store
	batchSize int
}

type Config struct {
	BatchSize int
}

func New(store Store, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Worker{store: store, batchSize: batch}
}

type payloadData map[string]interface{}

func (w *Worker) Run(ctx context.Context) error {
	last, err := w.store.GetLastOffset(ctx)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			log.Printf("notify process error: %v", err)
		}
		last = event.CreatedAt
	}

	if !last.IsZero() {
		if err := w.store.UpdateOffset(ctx, last); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, event OutboxEvent) error {
	payload := payloadData{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	template := templateForEvent(event.Type)
	if template == "" {
		return nil
	}
	body := renderTemplate(template, payload)

	for _, employeeID := range recipientIDs(payload) {
		contact, err := w.store.GetContact(ctx, employeeID)
		if err != nil {
			log.Printf("notify contact lookup %s: %v", employeeID, err)
			continue
		}
		channel, recipient := pickChannel(contact)
		if recipient == "" {
			continue
		}

		notification := Notification{
			NotificationID: uuid.NewString(),
			Channel:        channel,
			Recipient:      recipient,
			Body:           body,
			Status:         "sent",
		}
		if err := send(channel, body, recipient); err != nil {
			notification.Status = "failed"
		}
		if err := w.store.InsertNotification(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

func templateForEvent(eventType string) string {
	switch eventType {
	case "request.submitted":
		return "A {kind} request is waiting for review."
	case "request.approved":
		return "Your {kind} request was approved."
	case "request.rejected":
		return "Your {kind} request was rejected: {comment}"
	case "request.auto_approved":
		return "Your {kind} request was auto-approved after the review window."
	case "violation.reported":
		return "A queue violation report needs your response."
	case "violation.pending_approval":
		return "A violation report is ready for management review."
	case "violation.decided":
		return "A violation report you were involved in was resolved."
	default:
		return ""
	}
}

func renderTemplate(template string, payload payloadData) string {
	result := template
	result = strings.ReplaceAll(result, "{kind}", str(payload, "kind"))
	result = strings.ReplaceAll(result, "{comment}", str(payload, "comment"))
	return result
}

func str(payload payloadData, key string) string {
	if value, ok := payload[key]; ok {
		if text, ok := value.(string); ok {
			return text
		}
	}
	return ""
}

func recipientIDs(payload payloadData) []string {
	raw, ok := payload["recipient_ids"].([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, value := range raw {
		if id, ok := value.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func pickChannel(contact Contact) (string, string) {
	if contact.Phone != "" {
		return "sms", contact.Phone
	}
	if contact.Email != "" {
		return "email", contact.Email
	}
	return "", ""
}

func send(channel, message, recipient string) error {
	log.Printf("send %s to %s: %s", channel, recipient, message)
	return nil
}

// Start loops Run on the interval until the context ends.
func Start(ctx context.Context, interval time.Duration, w *Worker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
		}
	}
}
