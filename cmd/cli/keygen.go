package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/crypto"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

func newKeygenCmd() *cobra.Command {
	var (
		outDir  string
		name    string
		toVault bool
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair",
		Long: `keygen writes a PKCS#8 PEM private key and a PKIX PEM public key.
With --vault the private key is also stored at the Vault path configured for
the service (keys.vault_path, keys.vault_field).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			privPEM, pubPEM, err := crypto.MarshalKeyPair(priv)
			if err != nil {
				return err
			}

			privPath := filepath.Join(outDir, name)
			pubPath := filepath.Join(outDir, name+".pub")
			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			if err := writeFile(privPath, privPEM, flags, 0o600); err != nil {
				return err
			}
			if err := writeFile(pubPath, pubPEM, flags, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private key: %s\npublic key:  %s\n", privPath, pubPath)

			if toVault {
				cfg, err := config.LoadConfig(nil, nil)
				if err != nil {
					return err
				}
				vault, err := crypto.NewVaultClient(&cfg.Vault, logger.NewNoopLogger())
				if err != nil {
					return err
				}
				if err := crypto.StoreInVault(cmd.Context(), vault, &cfg.Keys, priv); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored in vault: %s\n", cfg.Keys.VaultPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for the key files")
	cmd.Flags().StringVar(&name, "name", constants.DefaultSigningKeyFile, "file name of the private key; the public key gets a .pub suffix")
	cmd.Flags().BoolVar(&toVault, "vault", false, "also store the private key in Vault")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func writeFile(path string, data []byte, flags int, perm os.FileMode) error {
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
