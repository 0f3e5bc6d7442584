package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)

	raw, err := json.Marshal(struct {
		D Date  `json:"d"`
		P *Date `json:"p,omitempty"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-01"}`, string(raw))

	var out struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-03-01T15:04:05Z"}`), &out))
	assert.Equal(t, "2024-03-01", out.D.String())
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01", d.String())

	require.NoError(t, d.Scan([]byte("2024-02-29")))
	assert.Equal(t, "2024-02-29", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPaymentStatusDisplayedVerbatim(t *testing.T) {
	due, _ := ParseDate("2024-01-01")
	p := Payment{Status: PaymentStatusPending, DueDate: &due}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"pending"`)
}

func TestUserRoleNavigation(t *testing.T) {
	assert.Equal(t, "admin", RoleAdmin.Navigation().String())
	assert.Equal(t, "unknown", UserRole("teacher").Navigation().String())
}
