package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningKey reports a key that cannot sign access tokens.
var ErrSigningKey = errors.New("jwtx: unusable signing key")

// Signer mints access tokens for the dev server.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

var _ Signer = (*EdDSASigner)(nil)

// EdDSASigner signs with one Ed25519 key and stamps its kid on every token.
type EdDSASigner struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSignerEdDSA reads a PKCS8 PEM private key, as written by
// cryptox.GenerateEd25519Key.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	priv, err := parseEd25519PEM(pemKey)
	if err != nil {
		return nil, err
	}
	return &EdDSASigner{kid: kid, priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

func parseEd25519PEM(pemKey []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	switch {
	case block == nil:
		return nil, fmt.Errorf("%w: no PEM block", ErrSigningKey)
	case block.Type != "PRIVATE KEY":
		return nil, fmt.Errorf("%w: PEM type %q, want PKCS8 PRIVATE KEY", ErrSigningKey, block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not ed25519", ErrSigningKey, parsed)
	}
	return priv, nil
}

func (s *EdDSASigner) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (s *EdDSASigner) KID() string { return s.kid }

// PublicKey is what NewVerifierEdDSA needs to check this signer's tokens.
func (s *EdDSASigner) PublicKey() ed25519.PublicKey { return s.pub }

func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	signed, err := t.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign %s: %w", s.kid, err)
	}
	return signed, nil
}

// Validate rejects a zero-value signer.
func (s *EdDSASigner) Validate() error {
	if len(s.priv) != ed25519.PrivateKeySize || len(s.pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: key %q is not loaded", ErrSigningKey, s.kid)
	}
	return nil
}
