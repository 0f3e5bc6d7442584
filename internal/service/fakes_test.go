package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/noah-isme/creche-api/internal/models"
)

// fakeChildDir ignores the parent filter on purpose so ownership re-checks
// are exercised.
type fakeChildDir struct {
	children []models.Child
}

func (f *fakeChildDir) ListByParent(context.Context, string) ([]models.Child, error) {
	return append([]models.Child(nil), f.children...), nil
}

func (f *fakeChildDir) FindByID(_ context.Context, id string) (*models.Child, error) {
	for _, c := range f.children {
		if c.ID == id {
			child := c
			return &child, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeChildDir) ListByIDs(_ context.Context, ids []string) ([]models.Child, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Child
	for _, c := range f.children {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[string]models.User
}

func (f fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func strPtr(v string) *string { return &v }
