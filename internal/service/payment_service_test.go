package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/repository"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]models.Payment
	receipts map[string]models.StripeReceipt
	history  map[string]models.StripePaymentHistory
	updates  []repository.PaymentUpdate
	filter   models.PaymentFilter
	leak     []models.Payment
	// failUpdates makes the next n UpdateStatus calls fail.
	failUpdates int
}

func newMockPaymentRepo(payments ...models.Payment) *mockPaymentRepo {
	m := &mockPaymentRepo{
		payments: map[string]models.Payment{},
		receipts: map[string]models.StripeReceipt{},
		history:  map[string]models.StripePaymentHistory{},
	}
	for _, p := range payments {
		m.payments[p.ID] = p
	}
	return m
}

func (m *mockPaymentRepo) List(_ context.Context, f models.PaymentFilter) ([]models.Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	out := append([]models.Payment(nil), m.leak...)
	for _, p := range m.payments {
		if f.ParentID == "" || p.ParentID == f.ParentID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *mockPaymentRepo) FindByIntent(_ context.Context, intentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == intentID {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = "pay-new"
	m.payments[p.ID] = *p
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(_ context.Context, id string, upd repository.PaymentUpdate) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return nil, errors.New("connection reset")
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	m.updates = append(m.updates, upd)
	p.Status = upd.Status
	if upd.PaymentDate != nil {
		p.PaymentDate = upd.PaymentDate
	}
	if upd.IntentID != "" {
		p.StripePaymentIntentID = &upd.IntentID
	}
	if upd.ReceiptURL != "" {
		p.StripeReceiptURL = &upd.ReceiptURL
	}
	m.payments[id] = p
	return &p, nil
}

func (m *mockPaymentRepo) ListReceipts(_ context.Context, paymentID string) ([]models.StripeReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StripeReceipt
	for _, r := range m.receipts {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) ListHistory(_ context.Context, paymentID string) ([]models.StripePaymentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StripePaymentHistory
	for _, h := range m.history {
		if h.PaymentID == paymentID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) UpsertReceipt(_ context.Context, rc *models.StripeReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[rc.ID] = *rc
	return nil
}

func (m *mockPaymentRepo) AppendHistory(_ context.Context, h *models.StripePaymentHistory) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.history[h.ID]; dup {
		return false, nil
	}
	m.history[h.ID] = *h
	return true, nil
}

func paymentFixture() (*PaymentService, *mockPaymentRepo, *recordingAudit) {
	repo := newMockPaymentRepo(
		models.Payment{ID: "pay-1", ParentID: "p1", Amount: 100, Currency: "EUR", Status: models.PaymentStatusPending},
		models.Payment{ID: "pay-2", ParentID: "p2", Amount: 50, Currency: "EUR", Status: models.PaymentStatusPending},
	)
	users := fakeUsers{users: map[string]models.User{
		"p1": {ID: "p1", Role: models.RoleParent},
		"a1": {ID: "a1", Role: models.RoleAdmin},
	}}
	dir := &fakeChildDir{children: []models.Child{{ID: "c1", ParentID: "p1"}, {ID: "c2", ParentID: "p2"}}}
	audit := &recordingAudit{}
	return NewPaymentService(repo, users, dir, audit, "eur", nil, nil), repo, audit
}

func TestPaymentCreateStartsPending(t *testing.T) {
	svc, _, _ := paymentFixture()
	p, err := svc.Create(context.Background(), models.CreatePaymentRequest{ParentID: "p1", ChildID: strPtr("c1"), Amount: 99.999, Description: " March fees "}, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, "EUR", p.Currency)
	assert.InDelta(t, 100.0, p.Amount, 0.0001)
	assert.Equal(t, "March fees", p.Description)
}

func TestPaymentCreateRejectsForeignChildAndNonParent(t *testing.T) {
	svc, _, _ := paymentFixture()

	_, err := svc.Create(context.Background(), models.CreatePaymentRequest{ParentID: "p1", ChildID: strPtr("c2"), Amount: 10}, "a1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), models.CreatePaymentRequest{ParentID: "a1", Amount: 10}, "a1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), models.CreatePaymentRequest{ParentID: "p1", Amount: -1}, "a1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPaymentListForParentForcesScope(t *testing.T) {
	svc, repo, _ := paymentFixture()
	repo.leak = []models.Payment{{ID: "pay-leak", ParentID: "p2"}}

	rows, _, err := svc.ListForParent(context.Background(), "p1", models.PaymentFilter{ParentID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "p1", repo.filter.ParentID)
	require.Len(t, rows, 1)
	assert.Equal(t, "pay-1", rows[0].ID)
}

func TestPaymentStatusIsNeverDerived(t *testing.T) {
	svc, repo, _ := paymentFixture()
	past := mustDate(t, "2020-01-01")
	p := repo.payments["pay-1"]
	p.DueDate = &past
	repo.payments["pay-1"] = p

	rows, _, err := svc.ListForParent(context.Background(), "p1", models.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusPending, rows[0].Status)
}

func TestPaymentSetStatus(t *testing.T) {
	svc, repo, audit := paymentFixture()

	p, err := svc.SetStatus(context.Background(), "pay-1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusPaid}, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
	require.NotNil(t, repo.updates[0].PaymentDate)

	p, err = svc.SetStatus(context.Background(), "pay-1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusPending}, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, []string{models.AuditActionPaymentStatus, models.AuditActionPaymentStatus}, audit.actions())

	_, err = svc.SetStatus(context.Background(), "pay-1", models.UpdatePaymentStatusRequest{Status: "refunded"}, "a1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetStatus(context.Background(), "missing", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusPaid}, "a1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPaymentReceiptsHideForeignPayments(t *testing.T) {
	svc, repo, _ := paymentFixture()
	repo.receipts["rc-1"] = models.StripeReceipt{ID: "rc-1", PaymentID: "pay-1", ParentID: "p1"}

	receipts, err := svc.Receipts(context.Background(), "p1", "pay-1")
	require.NoError(t, err)
	assert.Len(t, receipts, 1)

	_, err = svc.Receipts(context.Background(), "p1", "pay-2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
