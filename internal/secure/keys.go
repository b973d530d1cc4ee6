package secure

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// KeySource reports where LoadOrCreateKey found the key.
type KeySource string

const (
	KeyFromEnv       KeySource = "env"
	KeyFromFile      KeySource = "file"
	KeyFromGenerated KeySource = "generated"
)

// LoadOrCreateKey resolves the process key: the envVar environment variable
// first, then keyFile, otherwise a fresh key is generated and written to
// keyFile with mode 0600. Keys are stored base64 encoded.
func LoadOrCreateKey(envVar, keyFile string, logger *slog.Logger) ([]byte, KeySource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			key, err := decodeKey(v)
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", envVar, err)
			}
			logger.Debug("secure.key.loaded", "source", KeyFromEnv)
			return key, KeyFromEnv, nil
		}
	}

	if keyFile == "" {
		return nil, "", errors.New("no key in environment and no key file configured")
	}
	data, err := os.ReadFile(keyFile)
	switch {
	case err == nil:
		key, err := decodeKey(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", keyFile, err)
		}
		logger.Debug("secure.key.loaded", "source", KeyFromFile, "path", keyFile)
		return key, KeyFromFile, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, "", fmt.Errorf("read key file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, "", err
	}
	if dir := filepath.Dir(keyFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, "", fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, []byte(EncodeKey(key)+"\n"), 0o600); err != nil {
		return nil, "", fmt.Errorf("write key file: %w", err)
	}
	logger.Info("secure.key.generated", "path", keyFile)
	return key, KeyFromGenerated, nil
}

func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil {
			if len(key) != KeySize {
				return nil, fmt.Errorf("key must decode to %d bytes, got %d", KeySize, len(key))
			}
			return key, nil
		}
	}
	return nil, errors.New("key is not valid base64")
}
