package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listErr   error
	revoked   []string
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = map[string]*models.User{}
	}
	user.ID = "new-user"
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u.IsActive = active
	copy := *u
	return &copy, nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestUserServiceListStripsPasswordHash(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "a@example.com", PasswordHash: "secret-hash", Role: models.RoleAdmin},
	}}
	svc := NewUserService(repo, nil, zap.NewNop())

	users, pg, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, 1, pg.TotalCount)
	assert.Equal(t, models.DefaultPageSize, pg.PageSize)
}

func TestUserServiceCreateHashesAndNormalises(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil, zap.NewNop())

	profile, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email:    "  Parent@Example.com ",
		Password: "password123",
		FullName: "Pat Parent",
		Role:     "Parent",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.com", profile.Email)
	assert.Equal(t, models.RoleParent, profile.Role)
	assert.True(t, profile.IsActive)

	stored := repo.users["new-user"]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateRejectsUnknownRoleAndDuplicates(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1", Email: "taken@example.com"}}}
	svc := NewUserService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateUserRequest{Email: "x@example.com", Password: "password123", FullName: "X", Role: "teacher"}, "admin")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), models.CreateUserRequest{Email: "taken@example.com", Password: "password123", FullName: "X", Role: "parent"}, "admin")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"p1": {ID: "p1", IsActive: true, Role: models.RoleParent}}}
	svc := NewUserService(repo, nil, zap.NewNop())

	profile, err := svc.SetActive(context.Background(), "p1", models.SetActiveRequest{Active: boolPtr(false)}, "admin")
	require.NoError(t, err)
	assert.False(t, profile.IsActive)
	assert.Equal(t, []string{"p1"}, repo.revoked)

	_, err = svc.SetActive(context.Background(), "admin", models.SetActiveRequest{Active: boolPtr(false)}, "admin")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetActive(context.Background(), "ghost", models.SetActiveRequest{Active: boolPtr(true)}, "admin")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
