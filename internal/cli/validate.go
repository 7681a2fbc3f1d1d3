package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/manxbiltong/checkout/internal/config"
	h "github.com/manxbiltong/checkout/internal/http"
	"github.com/manxbiltong/checkout/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var policyFile string

	cmd := &cobra.Command{
		Use:   "validate <cart.json>",
		Short: "Validate a cart file and print the line items it would produce",
		Long:  "Reads a checkout request body ({\"cart\": [...], \"region\": \"..\"}) and applies the storefront policy without contacting the payment provider.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if policyFile == "" {
				policyFile = os.Getenv("CHECKOUT_POLICY_FILE")
			}
			sf, err := config.LoadStorefront(policyFile)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening cart: %w", err)
			}
			defer f.Close()

			sub, err := h.DecodeSubmission(f)
			if err != nil {
				return fmt.Errorf("cart rejected: %w", err)
			}
			items, err := service.ValidateAndCompose(sub, sf.Policy)
			if err != nil {
				return fmt.Errorf("cart rejected: %w", err)
			}

			printLineItems(cmd, items, sf.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFile, "policy", "", "storefront policy YAML file (defaults to $CHECKOUT_POLICY_FILE)")
	return cmd
}

func printLineItems(cmd *cobra.Command, items []d.LineItem, currency string) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTION\tQTY\tUNIT\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			item.Description, item.Quantity, money(item.UnitAmount), money(item.Subtotal()))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s %s\n", money(d.TotalMinorUnits(items)), currency)
	tw.Flush()
}

func money(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
