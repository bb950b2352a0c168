package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openbarn/authgate/pkg/cryptox"
	"github.com/openbarn/authgate/pkg/jwtx"
)

// InitSigningKeys builds the Ed25519 signing key and the key set the
// verifier and the JWKS endpoint serve from.
//
// Two modes:
//   - file: the PEM key at cfg.SigningKeyFile is loaded, so tokens survive
//     restarts. Operators manage rotation by swapping the file.
//   - ephemeral: a fresh key is generated on startup and all previously
//     issued access tokens become invalid.
func InitSigningKeys(cfg Config, logger *slog.Logger) (jwtx.Signer, *jwtx.KeySet, error) {
	var pem []byte
	var kid string

	if cfg.SigningKeyFile != "" {
		loaded, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read signing key file: %w", err)
		}
		pem = loaded
		kid = cfg.SigningKeyID
		logger.Info("signing key loaded from file", "path", cfg.SigningKeyFile, "kid", kid)
	} else {
		generated, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		pem = generated
		kid = cfg.SigningKeyID
		logger.Warn("ephemeral signing key generated, previously issued access tokens are now invalid", "kid", kid)
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pem)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize signer: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, fmt.Errorf("failed to register signing key: %w", err)
	}

	return signer, keys, nil
}
