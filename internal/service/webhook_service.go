package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/repository"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// WebhookSignatureHeader carries "t=<unix>,v1=<hex hmac>".
const WebhookSignatureHeader = "Processor-Signature"

// WebhookConfig holds the shared secret and the allowed clock skew.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

// WebhookService mirrors payment processor events into local rows.
type WebhookService struct {
	repo    paymentRepository
	config  WebhookConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

func NewWebhookService(repo paymentRepository, config WebhookConfig, metrics *MetricsService, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Tolerance <= 0 {
		config.Tolerance = 5 * time.Minute
	}
	return &WebhookService{repo: repo, config: config, metrics: metrics, logger: logger, now: time.Now}
}

// SignWebhookPayload returns the v1 signature for payload sent at ts.
func SignWebhookPayload(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature header against payload.
func (s *WebhookService) Verify(payload []byte, header string) error {
	if s.config.Secret == "" {
		return appErrors.Clone(appErrors.ErrUnavailable, "payment webhooks are not configured")
	}
	var ts int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return appErrors.Clone(appErrors.ErrUnauthorized, "invalid signature timestamp")
			}
			ts = parsed
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if ts == 0 || len(signatures) == 0 {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing webhook signature")
	}
	skew := s.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.config.Tolerance {
		return appErrors.Clone(appErrors.ErrUnauthorized, "webhook signature outside tolerance")
	}
	expected := SignWebhookPayload(s.config.Secret, ts, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnauthorized, "webhook signature mismatch")
}

// Handle verifies and applies one webhook delivery. The history row is
// written only after the payment and receipt writes succeed, so a delivery
// that fails part-way is applied in full when the processor retries it.
// Replays of an applied event id write nothing.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, header string) (*models.Payment, error) {
	if err := s.Verify(payload, header); err != nil {
		s.metrics.RecordWebhookEvent("unknown", "rejected")
		return nil, err
	}
	var event models.PaymentWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.metrics.RecordWebhookEvent("unknown", "invalid")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook body")
	}
	if event.ID == "" || event.Type == "" {
		s.metrics.RecordWebhookEvent(event.Type, "invalid")
		return nil, appErrors.Clone(appErrors.ErrValidation, "webhook event id and type are required")
	}

	payment, err := s.resolvePayment(ctx, event.Data)
	if err != nil {
		s.metrics.RecordWebhookEvent(event.Type, "unmatched")
		return nil, err
	}

	seen, err := s.applied(ctx, payment.ID, event.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		s.metrics.RecordWebhookEvent(event.Type, "duplicate")
		return payment, nil
	}

	occurred := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurred = s.now().UTC()
	}
	switch event.Type {
	case models.WebhookPaymentSucceeded:
		payment, err = s.applySucceeded(ctx, payment, event, occurred)
		if err != nil {
			s.metrics.RecordWebhookEvent(event.Type, "failed")
			return nil, err
		}
	case models.WebhookPaymentFailed:
		s.logger.Info("payment failed at processor", zap.String("payment_id", payment.ID), zap.String("event_id", event.ID))
	default:
		s.logger.Debug("ignoring webhook event type", zap.String("type", event.Type))
	}

	fresh, err := s.repo.AppendHistory(ctx, &models.StripePaymentHistory{
		ID:         event.ID,
		PaymentID:  payment.ID,
		ParentID:   payment.ParentID,
		EventType:  event.Type,
		Amount:     models.RoundAmount(event.Data.Amount),
		Status:     event.Data.Status,
		OccurredAt: occurred,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to record payment history")
	}
	if !fresh {
		// a concurrent delivery of the same event won; both applied the same writes
		s.metrics.RecordWebhookEvent(event.Type, "duplicate")
		return payment, nil
	}
	s.metrics.RecordWebhookEvent(event.Type, "applied")
	return payment, nil
}

// applied reports whether eventID is already in the payment's history.
func (s *WebhookService) applied(ctx context.Context, paymentID, eventID string) (bool, error) {
	history, err := s.repo.ListHistory(ctx, paymentID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to load payment history")
	}
	for _, h := range history {
		if h.ID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (s *WebhookService) applySucceeded(ctx context.Context, payment *models.Payment, event models.PaymentWebhookEvent, occurred time.Time) (*models.Payment, error) {
	if event.Data.ReceiptID != "" {
		currency := strings.ToUpper(event.Data.Currency)
		if currency == "" {
			currency = payment.Currency
		}
		receipt := &models.StripeReceipt{
			ID:         event.Data.ReceiptID,
			PaymentID:  payment.ID,
			ParentID:   payment.ParentID,
			Amount:     models.RoundAmount(event.Data.Amount),
			Currency:   currency,
			ReceiptURL: event.Data.ReceiptURL,
			Status:     event.Data.Status,
			PaidAt:     &occurred,
		}
		if err := s.repo.UpsertReceipt(ctx, receipt); err != nil {
			return nil, appErrors.Internal(err, "failed to mirror receipt")
		}
	}
	updated, err := s.repo.UpdateStatus(ctx, payment.ID, repository.PaymentUpdate{
		Status:      models.PaymentStatusPaid,
		PaymentDate: &occurred,
		IntentID:    event.Data.PaymentIntentID,
		ReceiptURL:  event.Data.ReceiptURL,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to mark payment paid")
	}
	return updated, nil
}

func (s *WebhookService) resolvePayment(ctx context.Context, data models.PaymentWebhookEventData) (*models.Payment, error) {
	var (
		payment *models.Payment
		err     error
	)
	switch {
	case data.PaymentID != "":
		payment, err = s.repo.FindByID(ctx, data.PaymentID)
	case data.PaymentIntentID != "":
		payment, err = s.repo.FindByIntent(ctx, data.PaymentIntentID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "webhook does not reference a payment")
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("payment %s%s not found", data.PaymentID, data.PaymentIntentID))
		}
		return nil, appErrors.Internal(err, "failed to load payment")
	}
	return payment, nil
}
