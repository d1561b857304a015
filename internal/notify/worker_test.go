package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakeStore struct {
	events        []OutboxEvent
	notifications []Notification
	offset        time.Time
}

func (f *fakeStore) GetLastOffset(ctx context.Context) (time.Time, error) { return f.offset, nil }

func (f *fakeStore) UpdateOffset(ctx context.Context, last time.Time) error {
	f.offset = last
	return nil
}

func (f *fakeStore) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeStore) GetContact(ctx context.Context, employeeID string) (Contact, error) {
	return Contact{Phone: "5145550000"}, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func TestRunDeliversAndAdvancesOffset(t *testing.T) {
	createdAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]interface{}{
		"kind":          "attendance_change",
		"recipient_ids": []string{"emp-1", "emp-2"},
	})
	st := &fakeStore{events: []OutboxEvent{{
		EventID:   "ev-1",
		Type:      "request.approved",
		Payload:   payload,
		CreatedAt: createdAt,
	}}}

	w := New(st, Config{})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(st.notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(st.notifications))
	}
	if st.notifications[0].Body != "Your attendance_change request was approved." {
		t.Fatalf("unexpected body: %q", st.notifications[0].Body)
	}
	if !st.offset.Equal(createdAt) {
		t.Fatalf("offset=%v, want %v", st.offset, createdAt)
	}
}

func TestRunSkipsUnknownEventTypes(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"recipient_ids": []string{"emp-1"}})
	st := &fakeStore{events: []OutboxEvent{{
		EventID:   "ev-2",
		Type:      "ticket.printed",
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}}}

	w := New(st, Config{})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(st.notifications))
	}
}
