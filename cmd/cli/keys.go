package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/spf13/cobra"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
)

func newKeysCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Fetch the verification keys from the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := fetchKeys(cmd.Context())
			if err != nil {
				return err
			}
			return printKeys(cmd.OutOrStdout(), keys, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "base64", "output format: base64, hex or pem")
	return cmd
}

func fetchKeys(ctx context.Context) ([][]byte, error) {
	var keys [][]byte
	err := withClient(ctx, func(ctx context.Context, client validationpb.ValidationClient) error {
		resp, err := client.GetVerificationKeys(ctx)
		if err != nil {
			return err
		}
		keys = resp.VerificationKeys
		return nil
	})
	return keys, err
}

func printKeys(w io.Writer, keys [][]byte, format string) error {
	for _, k := range keys {
		switch format {
		case "base64":
			fmt.Fprintln(w, base64.StdEncoding.EncodeToString(k))
		case "hex":
			fmt.Fprintf(w, "%x\n", k)
		case "pem":
			out, err := cryptoutils.MarshalPublicKeyToPEM(ed25519.PublicKey(k))
			if err != nil {
				return err
			}
			if _, err := w.Write(out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q", format)
		}
	}
	return nil
}
