package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("media-1", "media/child-1/a.jpg")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	id, path, parsed, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "media-1", id)
	require.Equal(t, "media/child-1/a.jpg", path)
	require.WithinDuration(t, expiresAt, parsed, time.Second)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }
	token, _, err := signer.Generate("media-1", "media/x.mp4")
	require.NoError(t, err)

	signer.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	id, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "media-1", id)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("media-1", "media/a.jpg")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "media-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.ErrorIs(t, err, ErrTokenSignature)

	other := NewSignedURLSigner("other", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, _, _, err = signer.Parse("garbage", false)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestSignedURLRequiresSecret(t *testing.T) {
	_, _, err := NewSignedURLSigner("", time.Hour).Generate("id", "p")
	require.Error(t, err)
}
