package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/carrier-reconciler/internal/cli"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
)

func main() {
	common.LoadDotEnv()

	rootCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile logistics partner invoices against the order ledger",
		Long: `reconcile normalizes a partner invoice, prices every line from the partner's
rate tables and reports how far the charged prices drift from the expected ones.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.PartnersCmd())
	rootCmd.AddCommand(cli.RunsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
