package models

import (
	"math"
	"time"
)

// PaymentStatus is stored and displayed verbatim; this service never derives
// it from due_date.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusOverdue:
		return true
	default:
		return false
	}
}

// Payment is a fee owed by a parent.
type Payment struct {
	ID                    string        `db:"id" json:"id"`
	ParentID              string        `db:"parent_id" json:"parent_id"`
	ChildID               *string       `db:"child_id" json:"child_id,omitempty"`
	Amount                float64       `db:"amount" json:"amount"`
	Currency              string        `db:"currency" json:"currency"`
	Description           string        `db:"description" json:"description"`
	Status                PaymentStatus `db:"status" json:"status"`
	DueDate               *Date         `db:"due_date" json:"due_date,omitempty"`
	PaymentDate           *time.Time    `db:"payment_date" json:"payment_date,omitempty"`
	StripePaymentIntentID *string       `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	StripeReceiptURL      *string       `db:"stripe_receipt_url" json:"stripe_receipt_url,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

func (p Payment) OwnerID() string { return p.ParentID }

// RoundAmount rounds to cents.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	ParentID string
	ChildID  string
	Status   *PaymentStatus
	Page     int
	PageSize int
}

// CreatePaymentRequest is the admin payload for billing a parent.
type CreatePaymentRequest struct {
	ParentID    string  `json:"parent_id" validate:"required"`
	ChildID     *string `json:"child_id"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	Description string  `json:"description" validate:"required"`
	DueDate     *Date   `json:"due_date"`
}

// UpdatePaymentStatusRequest force-sets a payment status.
type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status" validate:"required,payment_status"`
}

// StripeReceipt mirrors a processor receipt. Never edited locally.
type StripeReceipt struct {
	ID         string     `db:"id" json:"id"`
	PaymentID  string     `db:"payment_id" json:"payment_id"`
	ParentID   string     `db:"parent_id" json:"parent_id"`
	Amount     float64    `db:"amount" json:"amount"`
	Currency   string     `db:"currency" json:"currency"`
	ReceiptURL string     `db:"receipt_url" json:"receipt_url"`
	Status     string     `db:"status" json:"status"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

func (r StripeReceipt) OwnerID() string { return r.ParentID }

// StripePaymentHistory is an append-only log of processor events per payment.
type StripePaymentHistory struct {
	ID         string    `db:"id" json:"id"`
	PaymentID  string    `db:"payment_id" json:"payment_id"`
	ParentID   string    `db:"parent_id" json:"parent_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Amount     float64   `db:"amount" json:"amount"`
	Status     string    `db:"status" json:"status"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

func (h StripePaymentHistory) OwnerID() string { return h.ParentID }

// PaymentWebhookEvent is the processor's signed notification body.
type PaymentWebhookEvent struct {
	ID      string                  `json:"id"`
	Type    string                  `json:"type"`
	Created int64                   `json:"created"`
	Data    PaymentWebhookEventData `json:"data"`
}

// PaymentWebhookEventData carries the payment the event refers to.
type PaymentWebhookEventData struct {
	PaymentID       string  `json:"payment_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ReceiptID       string  `json:"receipt_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	ReceiptURL      string  `json:"receipt_url"`
	Status          string  `json:"status"`
}

// Webhook event types acted upon.
const (
	WebhookPaymentSucceeded = "payment_succeeded"
	WebhookPaymentFailed    = "payment_failed"
)
