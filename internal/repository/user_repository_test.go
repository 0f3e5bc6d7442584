package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

var userColumns = []string{"id", "email", "password_hash", "full_name", "role", "phone", "address", "emergency_contact_name", "emergency_contact_phone", "is_active", "last_login", "created_at", "updated_at"}

func newMock(t *testing.T) (store.Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return store.NewPostgresStore(sqlxdb), mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	now := time.Now()
	rows := sqlmock.NewRows(userColumns).
		AddRow("1", "user@example.com", "hash", "User", "parent", "", "", "", "", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, models.RoleParent, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDMiss(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1 LIMIT 1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.FindByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestUpdateLastLogin(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $1, updated_at = $2 WHERE id = $3 RETURNING *")).
		WithArgs(ts, ts, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "u1", ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{UserID: "u1", Token: "token", ExpiresAt: time.Now()}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	assert.NotEmpty(t, token.ID)
	assert.False(t, token.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	now := time.Now()
	listRows := sqlmock.NewRows(userColumns).
		AddRow("1", "a@example.com", "hash", "A", "admin", "", "", "", "", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE role = $1 ORDER BY created_at DESC NULLS LAST LIMIT 50")).
		WithArgs("admin").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = $1")).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	role := models.RoleAdmin
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUserRefreshTokensWithNoneLive(t *testing.T) {
	s, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(s)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = $1, revoked_at = $2 WHERE user_id = $3 AND revoked = $4 RETURNING *")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
