package interfaces

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolfees-cloud/internal/eventing"
	feesapp "schoolfees-cloud/internal/fees/application"
	fees "schoolfees-cloud/internal/fees/domain"
	feesmem "schoolfees-cloud/internal/fees/infrastructure/memory"
)

type gatewayFixture struct {
	handler  *GatewayWebhookHandler
	ledger   *feesapp.LedgerService
	payments *feesmem.PaymentRepository
	feeID    fees.FeeID
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	feeRepo := feesmem.NewStudentFeeRepository()
	payments := feesmem.NewPaymentRepository()
	ledger, err := feesapp.NewLedgerService(feeRepo, payments, eventing.NewBus(), feesapp.SystemClock{})
	require.NoError(t, err)

	feeID, err := fees.BuildFeeID("school-a", "stu-1", "2025-2026")
	require.NoError(t, err)
	now := time.Now().UTC()
	fee := &fees.StudentFee{
		ID:             feeID,
		SchoolID:       "school-a",
		StudentID:      "stu-1",
		GradeLevel:     1,
		AcademicYear:   "2025-2026",
		Frequency:      fees.FrequencyYearly,
		TotalAmountDue: decimal.RequireFromString("5000"),
		BalanceDue:     decimal.RequireFromString("5000"),
		Status:         fees.FeeStatusPending,
		DueDate:        now.AddDate(0, 0, 30),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, feeRepo.Save(context.Background(), fee))

	handler, err := NewGatewayWebhookHandler(ledger, payments, log.New(testWriter{t}, "", 0))
	require.NoError(t, err)
	return &gatewayFixture{handler: handler, ledger: ledger, payments: payments, feeID: feeID}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (f *gatewayFixture) applyPending(t *testing.T, amount, receipt string) {
	t.Helper()
	_, _, err := f.ledger.ApplyPayment(context.Background(), f.feeID, feesapp.ApplyPaymentInput{
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: "mobile_money",
		ReceiptNumber: receipt,
		Pending:       true,
	})
	require.NoError(t, err)
}

func (f *gatewayFixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestGatewayWebhook_SettlesPendingPayment(t *testing.T) {
	f := newGatewayFixture(t)
	f.applyPending(t, "2000", "RCPT-2025-0101")

	rec := f.post(`{"receipt_number":"RCPT-2025-0101","event":"payment.settled"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"partial"`)

	fee, _, err := f.ledger.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.Equal(decimal.RequireFromString("2000")))
	assert.Equal(t, fees.FeeStatusPartial, fee.Status)
}

func TestGatewayWebhook_FailureCancelsPendingPayment(t *testing.T) {
	f := newGatewayFixture(t)
	f.applyPending(t, "2000", "RCPT-2025-0102")

	rec := f.post(`{"receipt_number":"RCPT-2025-0102","event":"payment.failed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	fee, ledger, err := f.ledger.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.IsZero())
	require.Len(t, ledger, 1)
	assert.Equal(t, fees.PaymentStatusCancelled, ledger[0].Status)
}

func TestGatewayWebhook_RetryAcknowledged(t *testing.T) {
	f := newGatewayFixture(t)
	f.applyPending(t, "2000", "RCPT-2025-0103")

	first := f.post(`{"receipt_number":"RCPT-2025-0103","event":"payment.settled"}`)
	require.Equal(t, http.StatusOK, first.Code)

	retry := f.post(`{"receipt_number":"RCPT-2025-0103","event":"payment.settled"}`)
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Contains(t, retry.Body.String(), "already processed")
}

func TestGatewayWebhook_UnknownReceipt(t *testing.T) {
	f := newGatewayFixture(t)
	rec := f.post(`{"receipt_number":"RCPT-2025-9999","event":"payment.settled"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatewayWebhook_RejectsUnsupportedEvent(t *testing.T) {
	f := newGatewayFixture(t)
	rec := f.post(`{"receipt_number":"RCPT-2025-0104","event":"payment.voided"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
