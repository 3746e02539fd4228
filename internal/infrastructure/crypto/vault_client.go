package crypto

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// VaultClient reads and writes secrets in a Vault KV v2 mount.
type VaultClient interface {
	GetSecret(ctx context.Context, secretPath string) (map[string]interface{}, error)
	PutSecret(ctx context.Context, secretPath string, data map[string]interface{}) error
}

type vaultClientImpl struct {
	client    *vault.Client
	log       logger.Logger
	mountPath string
}

// NewVaultClient creates and configures a new Vault client.
func NewVaultClient(cfg *config.VaultConfig, log logger.Logger) (VaultClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.Timeout > 0 {
		vaultConfig.Timeout = cfg.Timeout
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &vaultClientImpl{
		client:    client,
		log:       log.WithComponent("vault"),
		mountPath: mount,
	}, nil
}

func (v *vaultClientImpl) GetSecret(ctx context.Context, secretPath string) (map[string]interface{}, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, secretPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, errors.ErrNotFound("secret not found").
				WithMetadata("path", secretPath).
				WithCause(err)
		}
		return nil, errors.Wrap(err, "failed to read vault secret").WithMetadata("path", secretPath)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrNotFound("secret not found").WithMetadata("path", secretPath)
	}
	fields := []logger.Field{logger.String("mount", v.mountPath), logger.String("path", secretPath)}
	if secret.VersionMetadata != nil {
		fields = append(fields, logger.Int("version", secret.VersionMetadata.Version))
	}
	v.log.Debug(ctx, "Read vault secret", fields...)
	return secret.Data, nil
}

func (v *vaultClientImpl) PutSecret(ctx context.Context, secretPath string, data map[string]interface{}) error {
	if _, err := v.client.KVv2(v.mountPath).Put(ctx, secretPath, data); err != nil {
		return errors.Wrap(err, "failed to write vault secret").WithMetadata("path", secretPath)
	}
	v.log.Info(ctx, "Wrote vault secret",
		logger.String("mount", v.mountPath),
		logger.String("path", secretPath),
	)
	return nil
}
