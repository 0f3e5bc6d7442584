package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// PaymentRepository stores payments and the mirrored processor records.
type PaymentRepository struct {
	store store.Store
}

func NewPaymentRepository(s store.Store) *PaymentRepository {
	return &PaymentRepository{store: s}
}

// List returns payments, latest due first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	q := store.Query{Table: store.TablePayments, Sort: []store.Sort{{Column: "due_date", Desc: true}, {Column: "created_at", Desc: true}}}
	if filter.ParentID != "" {
		q = q.Where(store.Eq("parent_id", filter.ParentID))
	}
	if filter.ChildID != "" {
		q = q.Where(store.Eq("child_id", filter.ChildID))
	}
	if filter.Status != nil {
		q = q.Where(store.Eq("status", string(*filter.Status)))
	}
	return listWithTotal[models.Payment](ctx, r.store, page(q, filter.Page, filter.PageSize), "payments")
}

// ListAll returns every payment matching status without paging.
func (r *PaymentRepository) ListAll(ctx context.Context, status *models.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	q := store.Query{Table: store.TablePayments, Sort: []store.Sort{{Column: "due_date", Desc: true}}}
	if status != nil {
		q = q.Where(store.Eq("status", string(*status)))
	}
	if err := r.store.Select(ctx, q, &payments); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.store.Get(ctx, byID(store.TablePayments, id), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIntent looks a payment up by the processor's payment intent id.
func (r *PaymentRepository) FindByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	q := store.Query{Table: store.TablePayments, Filters: []store.Filter{store.Eq("stripe_payment_intent_id", intentID)}}
	if err := r.store.Get(ctx, q, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	p.ID = newID(p.ID)
	stamp(&p.CreatedAt, &p.UpdatedAt)
	row := store.Row{
		"id":          p.ID,
		"parent_id":   p.ParentID,
		"child_id":    p.ChildID,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"description": p.Description,
		"status":      string(p.Status),
		"due_date":    p.DueDate,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
	if err := r.store.Insert(ctx, store.TablePayments, row, p); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// PaymentUpdate is a partial update of processor-driven payment fields.
type PaymentUpdate struct {
	Status      models.PaymentStatus
	PaymentDate *time.Time
	IntentID    string
	ReceiptURL  string
}

// UpdateStatus writes status and the optional processor fields and returns the row.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, upd PaymentUpdate) (*models.Payment, error) {
	patch := store.Row{"status": string(upd.Status), "updated_at": time.Now().UTC()}
	if upd.PaymentDate != nil {
		patch["payment_date"] = *upd.PaymentDate
	}
	if upd.IntentID != "" {
		patch["stripe_payment_intent_id"] = upd.IntentID
	}
	if upd.ReceiptURL != "" {
		patch["stripe_receipt_url"] = upd.ReceiptURL
	}
	var payment models.Payment
	if err := r.store.Update(ctx, store.TablePayments, []store.Filter{store.Eq("id", id)}, patch, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListReceipts returns the mirrored receipts of a payment.
func (r *PaymentRepository) ListReceipts(ctx context.Context, paymentID string) ([]models.StripeReceipt, error) {
	receipts := make([]models.StripeReceipt, 0)
	q := store.Query{
		Table:   store.TableStripeReceipts,
		Filters: []store.Filter{store.Eq("payment_id", paymentID)},
		Sort:    []store.Sort{{Column: "paid_at", Desc: true}},
	}
	if err := r.store.Select(ctx, q, &receipts); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// ListHistory returns processor events for a payment in order of occurrence.
func (r *PaymentRepository) ListHistory(ctx context.Context, paymentID string) ([]models.StripePaymentHistory, error) {
	history := make([]models.StripePaymentHistory, 0)
	q := store.Query{
		Table:   store.TableStripePaymentHistory,
		Filters: []store.Filter{store.Eq("payment_id", paymentID)},
		Sort:    []store.Sort{{Column: "occurred_at"}},
	}
	if err := r.store.Select(ctx, q, &history); err != nil {
		return nil, fmt.Errorf("list payment history: %w", err)
	}
	return history, nil
}

// UpsertReceipt mirrors a processor receipt keyed by the processor's receipt id.
func (r *PaymentRepository) UpsertReceipt(ctx context.Context, rc *models.StripeReceipt) error {
	stamp(&rc.CreatedAt, nil)
	row := store.Row{
		"id":          rc.ID,
		"payment_id":  rc.PaymentID,
		"parent_id":   rc.ParentID,
		"amount":      rc.Amount,
		"currency":    rc.Currency,
		"receipt_url": rc.ReceiptURL,
		"status":      rc.Status,
		"paid_at":     rc.PaidAt,
		"created_at":  rc.CreatedAt,
	}
	if err := r.store.Upsert(ctx, store.TableStripeReceipts, []string{"id"}, row, rc); err != nil {
		return fmt.Errorf("upsert receipt: %w", err)
	}
	return nil
}

// AppendHistory records one processor event. Replays of the same event id are ignored.
func (r *PaymentRepository) AppendHistory(ctx context.Context, h *models.StripePaymentHistory) (bool, error) {
	row := store.Row{
		"id":          h.ID,
		"payment_id":  h.PaymentID,
		"parent_id":   h.ParentID,
		"event_type":  h.EventType,
		"amount":      h.Amount,
		"status":      h.Status,
		"occurred_at": h.OccurredAt,
	}
	n, err := r.store.InsertIgnore(ctx, store.TableStripePaymentHistory, []string{"id"}, []store.Row{row})
	if err != nil {
		return false, fmt.Errorf("append payment history: %w", err)
	}
	return n > 0, nil
}

// SumOutstanding totals unpaid amounts.
func (r *PaymentRepository) SumOutstanding(ctx context.Context) (pending, overdue int, amount float64, err error) {
	var rows []models.Payment
	q := store.Query{Table: store.TablePayments, Filters: []store.Filter{{Column: "status", Op: store.OpNeq, Value: string(models.PaymentStatusPaid)}}}
	if err = r.store.Select(ctx, q, &rows); err != nil {
		return 0, 0, 0, fmt.Errorf("sum outstanding: %w", err)
	}
	for _, p := range rows {
		switch p.Status {
		case models.PaymentStatusPending:
			pending++
		case models.PaymentStatusOverdue:
			overdue++
		}
		amount += p.Amount
	}
	return pending, overdue, models.RoundAmount(amount), nil
}
