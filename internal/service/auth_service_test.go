package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockAuthRepo, expiry time.Duration) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  expiry,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func hashed(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthServiceLoginRoutesByRole(t *testing.T) {
	cases := []struct {
		role models.UserRole
		want string
	}{
		{models.RoleAdmin, "admin_dashboard"},
		{models.RoleParent, "parent_dashboard"},
		{models.UserRole("Teacher"), "login"},
	}
	for _, tc := range cases {
		repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "p@example.com", PasswordHash: hashed(t, "password"), IsActive: true, Role: tc.role}}
		svc := newAuthService(repo, time.Hour)

		res, err := svc.Login(context.Background(), models.LoginRequest{Email: " P@Example.com ", Password: "password"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Destination)
		assert.NotEmpty(t, res.AccessToken)
		assert.True(t, repo.lastLoginUpdated)
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
	}
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: hashed(t, "password"), IsActive: true}}
	svc := newAuthService(repo, time.Hour)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@example.com", Password: "nope"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: hashed(t, "password"), IsActive: false}}
	svc := newAuthService(repo, time.Hour)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{findByEmailErr: sql.ErrNoRows}, time.Hour)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "p@example.com", IsActive: true, Role: models.RoleParent}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		digest("token"): {ID: "rt1", UserID: "u1", Token: digest("token"), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, time.Hour)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEqual(t, "token", res.RefreshToken)
	require.Contains(t, repo.refreshTokens, digest(res.RefreshToken))
	assert.NotContains(t, repo.refreshTokens, res.RefreshToken)
	assert.True(t, repo.refreshTokens[digest("token")].Revoked)
	assert.Equal(t, models.AuditActionRefresh, repo.auditLogs[0].Action)
}

func TestAuthServiceRefreshInactiveUserSpendsToken(t *testing.T) {
	user := &models.User{ID: "u1", IsActive: false, Role: models.RoleParent}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		digest("token"): {ID: "rt1", UserID: "u1", Token: digest("token"), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, time.Hour)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
	assert.True(t, repo.refreshTokens[digest("token")].Revoked)
	assert.Len(t, repo.refreshTokens, 1)
}

func TestAuthServiceRefreshExpiredTokenIsSessionExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		digest("old"): {ID: "rt1", UserID: "u1", Token: digest("old"), ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newAuthService(repo, time.Hour)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	assert.True(t, errors.Is(err, appErrors.ErrSessionExpired))

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "missing"})
	assert.True(t, errors.Is(err, appErrors.ErrSessionExpired))
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		digest("token"): {ID: "rt1", UserID: "u1", Token: digest("token"), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, time.Hour)

	err := svc.Logout(context.Background(), "token", "u2", models.ClientInfo{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), "token", "u1", models.ClientInfo{}))
	assert.True(t, repo.refreshTokens[digest("token")].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "old")
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: oldHash, IsActive: true}}
	svc := newAuthService(repo, time.Hour)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestValidateToken(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, time.Hour)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenExpiredIsSessionExpired(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, -time.Minute)
	token, _, err := svc.generateAccessToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrSessionExpired))
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	issuer := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "creche-api"})
	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "someone-else"})
	token, _, err := other.generateAccessToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsOtherSigningMethod(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.JWTClaims{UserID: "u1"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
