package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/crypto"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/sdk/go/ticketverifier"
)

func newVerifyCmd() *cobra.Command {
	var (
		publicKeyFile string
		jwksURL       string
		policy        string
	)
	cmd := &cobra.Command{
		Use:   "verify <ticket.png>",
		Short: "Verify the signature of a ticket QR code",
		Long: `verify decodes a QR PNG and checks its signature. Keys come from
--public-key, from --jwks-url, or else from the service at --addr. --policy
must match the service's signing.claims_policy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var source ticketverifier.KeySource
			switch {
			case publicKeyFile != "":
				pemData, err := os.ReadFile(publicKeyFile)
				if err != nil {
					return err
				}
				pub, err := crypto.ParsePublicKeyPEM(pemData)
				if err != nil {
					return err
				}
				if source, err = ticketverifier.StaticKeys(pub); err != nil {
					return err
				}
			case jwksURL != "":
				source = ticketverifier.NewJWKSRefresher(jwksURL, nil)
			default:
				keys, err := fetchKeys(cmd.Context())
				if err != nil {
					return err
				}
				if source, err = ticketverifier.StaticKeys(keys...); err != nil {
					return err
				}
			}

			v := ticketverifier.New(source, ticketverifier.WithPolicy(constants.ClaimsPolicy(policy)))
			res, err := v.VerifyPNG(cmd.Context(), data)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyFile, "public-key", "", "PEM public key file")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "URL of the service key set")
	cmd.Flags().StringVar(&policy, "policy", string(constants.ClaimsPolicyClaims), "claims policy of the service: claims or verbatim")
	cmd.MarkFlagsMutuallyExclusive("public-key", "jwks-url")
	return cmd
}

func printResult(w io.Writer, res *ticketverifier.Result) {
	fmt.Fprintln(w, "signature: valid")
	switch {
	case res.Claims != nil:
		fmt.Fprintf(w, "ticket:    %s\n", res.Claims.TicketId)
		if res.Claims.FlightDetails != nil {
			fmt.Fprintf(w, "flight:    %s\n", res.Claims.FlightDetails.Id)
		}
		fmt.Fprintf(w, "passenger: %s\n", res.Claims.PassengerDetails)
		if res.Claims.TicketCreatedAt != nil {
			fmt.Fprintf(w, "created:   %s\n", res.Claims.TicketCreatedAt.AsTime().Format("2006-01-02T15:04:05Z07:00"))
		}
	case res.Ticket != nil:
		fmt.Fprintf(w, "ticket:    %s\n", res.Ticket.Id)
		fmt.Fprintf(w, "flight:    %s\n", res.Ticket.FlightId)
		fmt.Fprintf(w, "passenger: %s\n", res.Ticket.Passenger)
		fmt.Fprintf(w, "seat:      %s\n", res.Ticket.Seat)
	default:
		fmt.Fprintf(w, "payload:   %d bytes\n", len(res.Payload))
	}
}
