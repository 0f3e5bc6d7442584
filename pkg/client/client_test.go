package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

type fakeAPI struct {
	validToken   atomic.Value
	refreshOK    atomic.Bool
	childrenHits atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func apiError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]interface{}{"error": map[string]interface{}{"code": code, "message": code, "status": status}})
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{}
	api.validToken.Store("at-1")
	api.refreshOK.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			apiError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": models.LoginResponse{
			TokenPair: models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresIn: 900, IssuedAt: time.Now()},
			User:      models.UserInfo{ID: "parent-1", Email: req.Email, Role: models.RoleParent},
		}})
	})
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if !api.refreshOK.Load() {
			apiError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		api.validToken.Store("at-2")
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": models.RefreshTokenResponse{TokenPair: models.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2", ExpiresIn: 900, IssuedAt: time.Now()}}})
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/parent/children", func(w http.ResponseWriter, r *http.Request) {
		api.childrenHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+api.validToken.Load().(string) {
			apiError(w, http.StatusUnauthorized, "SESSION_EXPIRED")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data":       []models.Child{{ID: "c1", ParentID: "parent-1", FirstName: r.URL.Query().Get("name")}},
			"pagination": models.Pagination{Page: 1, PageSize: 50, TotalCount: 1},
		})
	})
	mux.HandleFunc("/api/v1/parent/consents", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusBadRequest, "VALIDATION_ERROR")
	})
	mux.HandleFunc("/api/v1/admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusServiceUnavailable, "UNAVAILABLE")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func newTestClient(t *testing.T, srv *httptest.Server, dir string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL + "/api/v1", DataDir: dir, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestLoginPersistsAndRoutes(t *testing.T) {
	_, srv := newFakeAPI(t)
	dir := t.TempDir()
	c := newTestClient(t, srv, dir)
	assert.Equal(t, navigation.DestinationLogin, c.Destination())

	_, err := c.Login(context.Background(), "p@creche.test", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, "INVALID_CREDENTIALS", Code(err))

	s, err := c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, "parent-1", s.UserID)
	assert.Equal(t, navigation.DestinationParentDashboard, c.Destination())

	restarted := newTestClient(t, srv, dir)
	assert.Equal(t, navigation.DestinationParentDashboard, restarted.Destination())

	require.NoError(t, restarted.Logout(context.Background()))
	assert.Equal(t, navigation.DestinationLogin, restarted.Destination())
}

func TestListSendsTokenAndDecodes(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv, "")
	_, err := c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)

	rows, page, err := List[models.Child](context.Background(), c, "/parent/children", url.Values{"name": {"Ada"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].FirstName)
	assert.Equal(t, 1, page.TotalCount)
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv, "")
	_, err := c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)

	api.validToken.Store("at-2")
	s, _ := c.Sessions().Current()
	require.Equal(t, "at-1", s.AccessToken)

	rows, _, err := List[models.Child](context.Background(), c, "/parent/children", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	s, _ = c.Sessions().Current()
	assert.Equal(t, "at-2", s.AccessToken)
	assert.Equal(t, int32(2), api.childrenHits.Load())
}

func TestRefusedRefreshSignsOut(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv, t.TempDir())
	_, err := c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)

	var signedOut atomic.Bool
	c.Sessions().Subscribe(func(_ Session, present bool) { signedOut.Store(!present) })

	api.validToken.Store("something-else")
	api.refreshOK.Store(false)

	_, _, err = List[models.Child](context.Background(), c, "/parent/children", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.True(t, signedOut.Load())
	assert.Equal(t, navigation.DestinationLogin, c.Destination())
}

func TestErrorTaxonomy(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv, "")

	_, _, err := List[models.Child](context.Background(), c, "/parent/children", nil)
	assert.True(t, errors.Is(err, ErrSessionExpired), "no session")

	_, err = c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)

	_, err = c.UpsertConsent(context.Background(), models.ConsentRequest{ChildID: "c1"})
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, "VALIDATION_ERROR", Code(err))

	_, err = c.AdminDashboard(context.Background())
	assert.True(t, errors.Is(err, ErrTransport))

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	offline, err := New(Config{BaseURL: dead.URL, Timeout: time.Second})
	require.NoError(t, err)
	_, err = offline.Login(context.Background(), "p@creche.test", "secret")
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestListLoaderAgainstServer(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(t, srv, "")
	_, err := c.Login(context.Background(), "p@creche.test", "secret")
	require.NoError(t, err)

	l := NewListLoader[models.Child](c, "/parent/children", nil)
	defer l.Close()

	st := l.Refresh(context.Background())
	require.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, "c1", st.Rows[0].ID)

	api.validToken.Store("nope")
	api.refreshOK.Store(false)
	st = l.Refresh(context.Background())
	assert.True(t, errors.Is(st.Err, ErrSessionExpired))
	require.Len(t, st.Rows, 1)
	assert.Equal(t, "c1", st.Rows[0].ID)
	assert.Equal(t, navigation.DestinationLogin, c.Destination())
}
