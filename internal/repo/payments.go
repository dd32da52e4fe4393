package repo

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Payment status values. As with orders, transitions are unrestricted.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payments wraps the Payments collection: records carry orderId, amount,
// paymentMethod, status, transactionId and paymentDate.
type Payments struct {
	*store.Store
}

// NewPayments builds the payments repository.
func NewPayments(payments *store.Store) *Payments {
	return &Payments{Store: payments}
}

// PaymentSummary folds a window of payments into totals by method.
type PaymentSummary struct {
	TotalAmount    float64            `json:"totalAmount"`
	TotalCount     int                `json:"totalCount"`
	CompletedCount int                `json:"completedCount"`
	ByMethod       map[string]float64 `json:"byMethod"`
	AverageAmount  float64            `json:"averageAmount"`
}

// ByOrder returns an order's payments, newest first.
func (p *Payments) ByOrder(ctx context.Context, orderID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(orderID)
	if !ok {
		return nil, nil
	}
	return p.Query(ctx, core.Q().Where("orderId", id).Sort(core.FieldCreatedAt, core.Desc))
}

// ByMethod returns payments made with the given method, newest first.
func (p *Payments) ByMethod(ctx context.Context, method string) ([]core.Record, error) {
	return p.Query(ctx, core.Q().Where("paymentMethod", method).Sort(core.FieldCreatedAt, core.Desc))
}

// ByStatus returns payments in the given status, newest first.
func (p *Payments) ByStatus(ctx context.Context, status string) ([]core.Record, error) {
	return p.Query(ctx, core.Q().Where("status", status).Sort(core.FieldCreatedAt, core.Desc))
}

// ByDateRange returns payments whose paymentDate falls within [start, end].
func (p *Payments) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Record, error) {
	return p.FindByDateRange(ctx, "paymentDate", start, end)
}

// Today returns payments dated today.
func (p *Payments) Today(ctx context.Context) ([]core.Record, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return p.ByDateRange(ctx, start, start.AddDate(0, 0, 1))
}

// GetSummary folds the window's payments: completed payments contribute to
// the totals and the per-method breakdown; the average guards an empty
// window as zero.
func (p *Payments) GetSummary(ctx context.Context, start, end time.Time) (PaymentSummary, error) {
	payments, err := p.ByDateRange(ctx, start, end)
	if err != nil {
		return PaymentSummary{}, err
	}

	summary := PaymentSummary{ByMethod: make(map[string]float64)}
	summary.TotalCount = len(payments)
	for _, payment := range payments {
		if payment.String("status") != PaymentCompleted {
			continue
		}
		summary.CompletedCount++
		summary.TotalAmount += payment.Float("amount")
		summary.ByMethod[payment.String("paymentMethod")] += payment.Float("amount")
	}
	if summary.CompletedCount > 0 {
		summary.AverageAmount = summary.TotalAmount / float64(summary.CompletedCount)
	}
	return summary, nil
}

// SearchPayments matches term against transaction id, method and status.
func (p *Payments) SearchPayments(ctx context.Context, term string) ([]core.Record, error) {
	return p.Search(ctx, term, []string{"transactionId", "paymentMethod", "status"})
}

// UpdateStatus moves a payment to the given status with optional notes.
func (p *Payments) UpdateStatus(ctx context.Context, paymentID interface{}, status, notes string) error {
	id, ok := core.ToInt(paymentID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := p.Update(ctx, core.Record{"status": status, "notes": notes}, core.Q().Where(core.FieldID, id))
	return err
}
