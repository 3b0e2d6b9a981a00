package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"txfeatures/internal/app"
)

var (
	showLimit    int
	showCustomer int64
	showTerminal int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently stored features",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit: showLimit,
		}
		if cmd.Flags().Changed("customer") {
			opts.CustomerID = &showCustomer
		}
		if cmd.Flags().Changed("terminal") {
			opts.TerminalID = &showTerminal
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().Int64Var(&showCustomer, "customer", 0, "Only show transactions of this customer")
	showCmd.Flags().Int64Var(&showTerminal, "terminal", 0, "Only show transactions at this terminal")
}
