package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "checkout",
		Short:         "Storefront checkout-session service",
		Long:          "Validates storefront carts and opens hosted payment checkout sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}
