package client

import (
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/haywire/internal/cmd/client/transports"
)

// NewHealthCommand checks server health over the gRPC health service.
func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health (gRPC)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _ := cmd.Flags().GetString("service")
			status, err := transports.NewGrpcTransport(dialGRPCContext).Check(cmd.Context(), service)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "status:", status)
			if status != "SERVING" {
				return fmt.Errorf("server is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().String("service", "", "Health service name (empty for overall status)")
	return cmd
}
