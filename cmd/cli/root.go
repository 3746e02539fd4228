// Package cli implements validationctl, the operator tool of the validation
// service.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
)

var (
	serverAddr string
	timeout    time.Duration
)

// dial opens the connection used by the gRPC subcommands. Tests replace it.
var dial = func(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// rootCmd is the base command when validationctl is called without any
// subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "validationctl",
		Short:         "Operate the ticket validation service",
		Long:          `validationctl generates signing keys, signs tickets against a running service and verifies QR codes offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:50051", "gRPC address of the validation service")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout of each service call")

	root.AddCommand(newKeygenCmd(), newKeysCmd(), newSignCmd(), newVerifyCmd())
	return root
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient dials the service and runs fn with a call context bounded by
// --timeout.
func withClient(ctx context.Context, fn func(ctx context.Context, client validationpb.ValidationClient) error) error {
	conn, err := dial(serverAddr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", serverAddr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx, validationpb.NewValidationClient(conn))
}
