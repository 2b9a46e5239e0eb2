package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

// RunsCmd returns the runs command
func RunsCmd() *cobra.Command {
	var (
		dbPath  string
		partner string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded reconciliation runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = common.LoadConfig().Runs.DBPath
			}
			var p constants.Partner
			if partner != "" {
				var ok bool
				if p, ok = constants.ParsePartner(partner); !ok {
					return &common.UnsupportedPartnerError{Partner: partner}
				}
			}
			rs, err := store.Open(cmd.Context(), dbPath, nil)
			if err != nil {
				return err
			}
			defer func() { _ = rs.Close() }()

			runs, err := rs.ListRuns(cmd.Context(), p, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				state := color.New(color.FgGreen).Sprint(r.State)
				if r.State != constants.RunStateSuccess {
					state = color.New(color.FgRed).Sprint(r.State)
				}
				fmt.Fprintf(w, "%s  %-16s %-14s %-18s delta %8s rows %3d\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.Partner, r.InvoiceNumber, state, r.DeltaSum.StringFixed(2), r.NumRows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "runs-db", "", "SQLite run history (default RUNS_DB_PATH)")
	cmd.Flags().StringVarP(&partner, "partner", "p", "", "only this partner")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")

	return cmd
}
