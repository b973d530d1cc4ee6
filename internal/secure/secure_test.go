package secure

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	b, err := NewBox(key)
	require.NoError(t, err)
	return b
}

func TestBoxRoundTrip(t *testing.T) {
	b := newTestBox(t)
	payloads := [][]byte{
		[]byte("invoice_id,amount\nINV-1,500\n"),
		{},
		bytes.Repeat([]byte{0x00, 0xff}, 4096),
	}
	for _, p := range payloads {
		sealed, err := b.Seal(p)
		require.NoError(t, err)
		out, err := b.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, p, out)
	}

	token, err := b.SealString("₹ 1,20,000")
	require.NoError(t, err)
	s, err := b.OpenString(token)
	require.NoError(t, err)
	assert.Equal(t, "₹ 1,20,000", s)
}

func TestBoxWrongKeyFails(t *testing.T) {
	a, other := newTestBox(t), newTestBox(t)
	sealed, err := a.Seal([]byte("secret csv"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	sealed[len(sealed)-1] ^= 0x01
	_, err = a.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = a.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = a.OpenString("not base64 !!")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewBoxRejectsBadKey(t *testing.T) {
	_, err := NewBox([]byte("too short"))
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	const envVar = "TRADEDOCS_TEST_ENCRYPTION_KEY"

	t.Run("env wins", func(t *testing.T) {
		key, _ := GenerateKey()
		t.Setenv(envVar, EncodeKey(key))
		path := filepath.Join(t.TempDir(), "secret.key")

		got, src, err := LoadOrCreateKey(envVar, path, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, KeyFromEnv, src)
		assert.Equal(t, key, got)
		assert.NoFileExists(t, path)
	})

	t.Run("generate then load from file", func(t *testing.T) {
		t.Setenv(envVar, "")
		path := filepath.Join(t.TempDir(), "keys", "secret.key")

		first, src, err := LoadOrCreateKey(envVar, path, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, KeyFromGenerated, src)
		assert.Len(t, first, KeySize)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, src, err := LoadOrCreateKey(envVar, path, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, KeyFromFile, src)
		assert.Equal(t, first, second)
	})

	t.Run("bad env key", func(t *testing.T) {
		t.Setenv(envVar, "c2hvcnQ=")
		_, _, err := LoadOrCreateKey(envVar, filepath.Join(t.TempDir(), "k"), discardLogger())
		assert.Error(t, err)
	})
}
