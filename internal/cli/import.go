package cli

import (
	"github.com/spf13/cobra"

	"txfeatures/internal/app"
)

var importInput string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a transaction CSV into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), app.ImportOptions{InputPath: importInput})
	},
}

func init() {
	importCmd.Flags().StringVar(&importInput, "input", "", "Transaction CSV to import (- for stdin)")
	_ = importCmd.MarkFlagRequired("input")
}
