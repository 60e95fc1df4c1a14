package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	feesapp "schoolfees-cloud/internal/fees/application"
	fees "schoolfees-cloud/internal/fees/domain"
)

// GatewayWebhookHandler handles settlement callbacks from the payment
// gateway. Callbacks reference payments by receipt number because the
// gateway never sees internal payment ids.
type GatewayWebhookHandler struct {
	ledger   *feesapp.LedgerService
	payments fees.PaymentRepository
	logger   *log.Logger
}

// NewGatewayWebhookHandler constructs a gateway webhook handler.
func NewGatewayWebhookHandler(ledger *feesapp.LedgerService, payments fees.PaymentRepository, logger *log.Logger) (*GatewayWebhookHandler, error) {
	if ledger == nil {
		return nil, errors.New("gateway webhook: nil ledger service")
	}
	if payments == nil {
		return nil, errors.New("gateway webhook: nil payment repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GatewayWebhookHandler{ledger: ledger, payments: payments, logger: logger}, nil
}

// ServeHTTP applies a gateway callback to the referenced payment.
func (h *GatewayWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("gateway webhook: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req gatewayCallback
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("gateway webhook: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		h.logger.Printf("gateway webhook: invalid payload: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := h.payments.FindByReceipt(r.Context(), req.ReceiptNumber)
	if err != nil {
		h.logger.Printf("gateway webhook: lookup error: %v", err)
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if payment == nil {
		http.Error(w, "unknown receipt", http.StatusNotFound)
		return
	}

	var fee *fees.StudentFee
	switch req.Event {
	case gatewayEventSettled:
		fee, _, err = h.ledger.SettlePayment(r.Context(), payment.FeeID, payment.ID)
	case gatewayEventFailed:
		fee, _, err = h.ledger.CancelPayment(r.Context(), payment.FeeID, payment.ID)
	}
	if err != nil {
		// A callback for an already settled or cancelled payment is a
		// gateway retry. Acknowledge it so the gateway stops resending.
		if errors.Is(err, fees.ErrInvalidPaymentState) {
			h.respond(w, payment.FeeID, req.ReceiptNumber, "already processed")
			return
		}
		h.logger.Printf("gateway webhook: apply error: receipt=%s event=%s: %v", req.ReceiptNumber, req.Event, err)
		http.Error(w, "apply error", http.StatusInternalServerError)
		return
	}

	h.logger.Printf("gateway webhook: receipt=%s event=%s fee=%s status=%s", req.ReceiptNumber, req.Event, fee.ID, fee.Status)
	h.respond(w, fee.ID, req.ReceiptNumber, fee.Status)
}

func (h *GatewayWebhookHandler) respond(w http.ResponseWriter, feeID fees.FeeID, receipt, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"fee_id":         string(feeID),
		"receipt_number": receipt,
		"status":         status,
	})
}

const (
	gatewayEventSettled = "payment.settled"
	gatewayEventFailed  = "payment.failed"
)

type gatewayCallback struct {
	ReceiptNumber string `json:"receipt_number"`
	Event         string `json:"event"`
	GatewayRef    string `json:"gateway_ref"`
}

func (c gatewayCallback) validate() error {
	if strings.TrimSpace(c.ReceiptNumber) == "" {
		return errors.New("missing receipt_number")
	}
	switch c.Event {
	case gatewayEventSettled, gatewayEventFailed:
		return nil
	default:
		return errors.New("unsupported event")
	}
}
