package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/delta"
)

// PartnersCmd returns the partners command
func PartnersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partners",
		Short: "List supported partners and the documents they send",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, p := range constants.Partners() {
				docs := constants.PrimaryExt(p)
				if s := constants.SecondaryExt(p); s != "" {
					docs += " + " + s
				}
				join := "-"
				if spec, ok := delta.JoinSpecFor(p); ok {
					join = spec.Field.String()
				}
				fmt.Fprintf(w, "%-18s %-11s joins on %s\n", p, docs, join)
			}
			return nil
		},
	}
}
