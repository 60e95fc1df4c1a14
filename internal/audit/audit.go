package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names for fee ledger audit records.
const (
	ActionFeeResolve    = "fee.resolve"
	ActionFeeWaive      = "fee.waive"
	ActionPaymentApply  = "payment.apply"
	ActionPaymentRefund = "payment.refund"
	ActionPaymentCancel = "payment.cancel"
	ActionPaymentSettle = "payment.settle"
)

// Entry is one append-only audit record. Metadata holds the
// action-specific payload; PayloadDigest fixes its content at write time.
type Entry struct {
	ID            string
	SchoolID      string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	StudentID     string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
