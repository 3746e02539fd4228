package crypto

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// KeyLoader acquires the signing key once at startup. Any failure is fatal to
// the process; there is no mode that serves without a key.
type KeyLoader struct {
	cfg   *config.KeysConfig
	vault VaultClient
	log   logger.Logger
}

// NewKeyLoader creates a loader. vault may be nil unless cfg.Source is vault.
func NewKeyLoader(cfg *config.KeysConfig, vault VaultClient, log logger.Logger) *KeyLoader {
	return &KeyLoader{cfg: cfg, vault: vault, log: log.WithComponent("keys")}
}

// Load returns the private key from the configured source.
func (l *KeyLoader) Load(ctx context.Context) (ed25519.PrivateKey, error) {
	source := constants.KeySource(l.cfg.Source)
	if l.cfg.GenerateSigningKey {
		source = constants.KeySourceGenerate
	}

	switch source {
	case constants.KeySourceFile:
		return l.loadFile(ctx)
	case constants.KeySourceGenerate:
		l.log.Warn(ctx, "Generating an ephemeral signing key, signatures will not survive a restart")
		return GenerateKey()
	case constants.KeySourceVault:
		return l.loadVault(ctx)
	default:
		return nil, errors.ErrInvalidArgument(fmt.Sprintf("unknown key source %q", l.cfg.Source))
	}
}

func (l *KeyLoader) loadFile(ctx context.Context) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(l.cfg.SigningKeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read signing key file").
			WithMetadata("path", l.cfg.SigningKeyFile)
	}
	priv, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode signing key file").
			WithMetadata("path", l.cfg.SigningKeyFile)
	}
	l.log.Info(ctx, "Loaded signing key", logger.String("path", l.cfg.SigningKeyFile))
	return priv, nil
}

func (l *KeyLoader) loadVault(ctx context.Context) (ed25519.PrivateKey, error) {
	if l.vault == nil {
		return nil, errors.ErrInternal("vault key source selected without a vault client")
	}
	data, err := l.vault.GetSecret(ctx, l.cfg.VaultPath)
	if err != nil {
		return nil, err
	}
	raw, ok := data[l.cfg.VaultField].(string)
	if !ok || raw == "" {
		return nil, errors.ErrNotFound("signing key field missing from vault secret").
			WithMetadata("path", l.cfg.VaultPath).
			WithMetadata("field", l.cfg.VaultField)
	}
	priv, err := ParsePrivateKeyPEM([]byte(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode signing key from vault").
			WithMetadata("path", l.cfg.VaultPath)
	}
	l.log.Info(ctx, "Loaded signing key from vault", logger.String("path", l.cfg.VaultPath))
	return priv, nil
}

// StoreInVault writes priv to the configured Vault secret in the layout Load
// expects.
func StoreInVault(ctx context.Context, vault VaultClient, cfg *config.KeysConfig, priv ed25519.PrivateKey) error {
	privPEM, pubPEM, err := MarshalKeyPair(priv)
	if err != nil {
		return err
	}
	return vault.PutSecret(ctx, cfg.VaultPath, map[string]interface{}{
		cfg.VaultField: string(privPEM),
		"public_key":   string(pubPEM),
	})
}
