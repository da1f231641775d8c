package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authkit/pkg/cryptox"
	"github.com/aussiebroadwan/authkit/pkg/jwtx"
)

// loadSigner returns the Ed25519 signer for access tokens.
//
// Without a key file the key is generated per process, so every token issued
// by a previous run stops verifying after a restart. With a key file the key
// is read from it, or generated and written there on first start.
func loadSigner(path string, logger *slog.Logger) (*jwtx.EdDSASigner, error) {
	pemKey, created, err := cryptox.LoadOrCreateEd25519Key(path)
	if err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSignerEdDSA(cryptox.FingerprintToken(string(pemKey))[:16], pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	switch {
	case path == "":
		logger.Info("using ephemeral signing key", "kid", signer.KID())
	case created:
		logger.Info("generated signing key", "kid", signer.KID(), "path", path)
	default:
		logger.Info("loaded signing key", "kid", signer.KID(), "path", path)
	}
	return signer, nil
}
