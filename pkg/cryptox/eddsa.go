package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const pemTypePrivateKey = "PRIVATE KEY"

// GenerateEd25519Key returns a fresh Ed25519 private key as PKCS8 PEM.
func GenerateEd25519Key() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal pkcs8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: der}), nil
}

// LoadOrCreateEd25519Key works like LoadOrCreatePepper for signing keys. The
// second return value reports whether the key was generated by this call.
// A file that exists but holds no Ed25519 PEM key is an error, never
// silently replaced.
func LoadOrCreateEd25519Key(path string) ([]byte, bool, error) {
	if path == "" {
		key, err := GenerateEd25519Key()
		return key, true, err
	}

	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := checkEd25519PEM(data); err != nil {
			return nil, false, fmt.Errorf("cryptox: %s: %w", path, err)
		}
		return data, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("cryptox: read signing key: %w", err)
	}

	key, err := GenerateEd25519Key()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, false, fmt.Errorf("cryptox: create signing key dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, false, fmt.Errorf("cryptox: write signing key: %w", err)
	}
	return key, true, nil
}

func checkEd25519PEM(data []byte) error {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypePrivateKey {
		return errors.New("not a PEM private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return err
	}
	if _, ok := key.(ed25519.PrivateKey); !ok {
		return fmt.Errorf("key is %T, want ed25519", key)
	}
	return nil
}
