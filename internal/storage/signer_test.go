package storage_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
)

func TestNewSigner_RejectsShortKey(t *testing.T) {
	_, err := storage.NewSigner("short", "http://localhost")
	assert.Error(t, err)
}

func TestSigner_RoundTrip(t *testing.T) {
	signer, err := storage.NewSigner("0123456789abcdef-signing", "http://files.example.com/api/v1/")
	require.NoError(t, err)

	key := storage.ContentKey([]byte("manual.pdf"))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	link := signer.SignedURL(key, now.Add(15*time.Minute))

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/blobs/"+key, u.Path)
	exp, sig := u.Query().Get("exp"), u.Query().Get("sig")

	t.Run("valid before expiry", func(t *testing.T) {
		assert.NoError(t, signer.Verify(key, exp, sig, now))
		assert.NoError(t, signer.Verify(key, exp, strings.ToUpper(sig), now.Add(15*time.Minute)))
	})

	t.Run("expired", func(t *testing.T) {
		err := signer.Verify(key, exp, sig, now.Add(16*time.Minute))
		assert.ErrorIs(t, err, storage.ErrInvalidSignature)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("tampered", func(t *testing.T) {
		other := storage.ContentKey([]byte("other"))
		assert.ErrorIs(t, signer.Verify(other, exp, sig, now), storage.ErrInvalidSignature)
		assert.ErrorIs(t, signer.Verify(key, "9999999999", sig, now), storage.ErrInvalidSignature)
		assert.ErrorIs(t, signer.Verify(key, "soon", sig, now), storage.ErrInvalidSignature)
	})

	t.Run("different secret", func(t *testing.T) {
		otherSigner, err := storage.NewSigner("another-secret-value-123", "http://files.example.com/api/v1")
		require.NoError(t, err)
		assert.ErrorIs(t, otherSigner.Verify(key, exp, sig, now), storage.ErrInvalidSignature)
	})
}

func TestContentKey(t *testing.T) {
	key := storage.ContentKey([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", key)
	assert.True(t, storage.ValidKey(key))
	assert.False(t, storage.ValidKey(strings.ToUpper(key)))
	assert.False(t, storage.ValidKey("../../etc/passwd"))
	assert.False(t, storage.ValidKey(key[:10]))
}
