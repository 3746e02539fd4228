package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
)

func newSignCmd() *cobra.Command {
	var (
		ticket     validationpb.Ticket
		reservedAt string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a ticket and write its QR code",
		Long: `sign calls SignTicket and writes the returned QR PNG to --out. When the
service only returns the signed package, its base64 wire form is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reservedAt != "" {
				ts, err := time.Parse(time.RFC3339, reservedAt)
				if err != nil {
					return fmt.Errorf("invalid --reserved-at: %w", err)
				}
				ticket.ReservationDatetime = timestamppb.New(ts)
			}

			var resp *validationpb.SignTicketResponse
			err := withClient(cmd.Context(), func(ctx context.Context, client validationpb.ValidationClient) error {
				var err error
				resp, err = client.SignTicket(ctx, &validationpb.SignTicketRequest{Ticket: &ticket})
				return err
			})
			if err != nil {
				return err
			}

			if len(resp.Qr) > 0 {
				if err := os.WriteFile(out, resp.Qr, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(resp.Qr))
			}
			if resp.SignedTicket != nil {
				wire, err := resp.SignedTicket.Marshal()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(wire))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ticket.Id, "id", "", "ticket id")
	cmd.Flags().StringVar(&ticket.FlightId, "flight", "", "flight id")
	cmd.Flags().StringVar(&ticket.Passenger, "passenger", "", "passenger name")
	cmd.Flags().StringVar(&ticket.Seat, "seat", "", "seat")
	cmd.Flags().StringVar(&reservedAt, "reserved-at", "", "reservation time, RFC 3339")
	cmd.Flags().StringVarP(&out, "out", "o", "ticket.png", "output PNG file")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
