package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"schoolfees-cloud/internal/eventing"
	feesapp "schoolfees-cloud/internal/fees/application"
	fees "schoolfees-cloud/internal/fees/domain"
)

// Event names carried in notifications.
const (
	EventPaymentApplied  = "payment_applied"
	EventPaymentRefunded = "payment_refunded"
	EventFeeResolved     = "fee_resolved"
)

// FeeReader loads fee snapshots for notification context.
type FeeReader interface {
	Get(ctx context.Context, id fees.FeeID) (*fees.StudentFee, error)
}

// Clock provides time for throttling decisions.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders fee events and delivers them via a channel, with
// per-fee cooldown and content dedupe.
type Notifier struct {
	feeReader    FeeReader
	channel      Channel
	template     *Template
	clock        Clock
	mu           sync.Mutex
	sent         map[string]sendRecord
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// fee and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs a fee notifier.
func NewNotifier(feeReader FeeReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if feeReader == nil {
		return nil, errors.New("fee notifier: nil fee reader")
	}
	if channel == nil {
		return nil, errors.New("fee notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		feeReader: feeReader,
		channel:   channel,
		template:  template,
		clock:     systemClock{},
		sent:      make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Register subscribes the notifier to the fee event bus.
func (n *Notifier) Register(bus *eventing.Bus) {
	if n == nil || bus == nil {
		return
	}
	eventing.Subscribe(bus, func(ctx context.Context, event feesapp.PaymentApplied) error {
		n.notifyPaymentApplied(ctx, event)
		return nil
	})
	eventing.Subscribe(bus, func(ctx context.Context, event feesapp.PaymentRefunded) error {
		n.notifyPaymentRefunded(ctx, event)
		return nil
	})
}

func (n *Notifier) notifyPaymentApplied(ctx context.Context, event feesapp.PaymentApplied) {
	fee := n.lookupFee(ctx, event.FeeID)
	data := TemplateData{
		ReceiptNumber: event.ReceiptNumber,
		Amount:        event.Amount.StringFixed(2),
		BalanceDue:    event.BalanceDue.StringFixed(2),
		Status:        event.FeeStatus,
		Event:         EventPaymentApplied,
		EventLabel:    "Payment Received",
	}
	fillFee(&data, fee, event.FeeID)
	n.dispatch(ctx, string(event.FeeID), EventPaymentApplied, data)
}

func (n *Notifier) notifyPaymentRefunded(ctx context.Context, event feesapp.PaymentRefunded) {
	fee := n.lookupFee(ctx, event.FeeID)
	data := TemplateData{
		Amount:     event.Amount.StringFixed(2),
		BalanceDue: event.BalanceDue.StringFixed(2),
		Status:     event.FeeStatus,
		Reason:     event.Reason,
		Event:      EventPaymentRefunded,
		EventLabel: "Payment Refunded",
	}
	fillFee(&data, fee, event.FeeID)
	n.dispatch(ctx, string(event.FeeID), EventPaymentRefunded, data)
}

func (n *Notifier) lookupFee(ctx context.Context, feeID fees.FeeID) *fees.StudentFee {
	if n.feeReader == nil {
		return nil
	}
	fee, err := n.feeReader.Get(ctx, feeID)
	if err != nil {
		return nil
	}
	return fee
}

func fillFee(data *TemplateData, fee *fees.StudentFee, feeID fees.FeeID) {
	if fee == nil {
		data.StudentID = string(feeID)
		return
	}
	data.SchoolID = fee.SchoolID
	data.StudentID = fee.StudentID
	data.AcademicYear = fee.AcademicYear
}

func (n *Notifier) dispatch(ctx context.Context, feeID, eventType string, data TemplateData) {
	content, err := n.template.Render(data)
	if err != nil {
		return
	}
	if !n.shouldSend(feeID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return
	}
	n.markSent(feeID, eventType, content)
}

func (n *Notifier) shouldSend(feeID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(feeID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(feeID, eventType, content string) {
	if n == nil {
		return
	}
	key := notificationKey(feeID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(feeID, eventType string) string {
	return feeID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
