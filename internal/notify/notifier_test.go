package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	feesapp "schoolfees-cloud/internal/fees/application"
	fees "schoolfees-cloud/internal/fees/domain"
)

type stubFeeReader struct {
	fee *fees.StudentFee
}

func (s stubFeeReader) Get(_ context.Context, _ fees.FeeID) (*fees.StudentFee, error) {
	return s.fee, nil
}

func testFee() *fees.StudentFee {
	return &fees.StudentFee{
		ID:           "school-a|stu-1|2025-2026",
		SchoolID:     "school-a",
		StudentID:    "stu-1",
		AcademicYear: "2025-2026",
		Status:       fees.FeeStatusPartial,
	}
}

func appliedEvent() feesapp.PaymentApplied {
	return feesapp.PaymentApplied{
		FeeID:         "school-a|stu-1|2025-2026",
		PaymentID:     uuid.New(),
		ReceiptNumber: "RCPT-2025-0001",
		Amount:        decimal.RequireFromString("2000"),
		BalanceDue:    decimal.RequireFromString("5500"),
		FeeStatus:     fees.FeeStatusPartial,
		OccurredAt:    time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	notifier, err := NewNotifier(stubFeeReader{fee: testFee()}, channel, nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.notifyPaymentApplied(context.Background(), appliedEvent())

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		content := payload.Text.Content
		checks := []string{
			"[Fee Payment Received]",
			"School: school-a",
			"Student: stu-1",
			"Academic Year: 2025-2026",
			"Receipt: RCPT-2025-0001",
			"Amount: 2000.00",
			"Balance Due: 5500.00",
			"Status: partial",
		}
		for _, expected := range checks {
			if !strings.Contains(content, expected) {
				t.Fatalf("expected content to include %q, got %s", expected, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestNotifierCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	notifier, err := NewNotifier(stubFeeReader{fee: testFee()}, channel, nil,
		WithClock(clock), WithCooldown(10*time.Minute))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	event := appliedEvent()
	notifier.notifyPaymentApplied(context.Background(), event)
	notifier.notifyPaymentApplied(context.Background(), event)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during cooldown, got %d", got)
	}

	clock.Add(11 * time.Minute)
	notifier.notifyPaymentApplied(context.Background(), event)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after cooldown, got %d", got)
	}
}

func TestNotifierDedupeWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	notifier, err := NewNotifier(stubFeeReader{fee: testFee()}, channel, nil,
		WithClock(clock), WithDedupeWindow(30*time.Minute))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	event := appliedEvent()
	notifier.notifyPaymentApplied(context.Background(), event)
	clock.Add(5 * time.Minute)
	notifier.notifyPaymentApplied(context.Background(), event)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during dedupe window, got %d", got)
	}

	event.BalanceDue = decimal.RequireFromString("3500")
	notifier.notifyPaymentApplied(context.Background(), event)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected notification when content changes, got %d", got)
	}
}
