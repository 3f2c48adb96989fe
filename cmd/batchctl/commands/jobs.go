package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

func newJobsCommand(a *app) *cobra.Command {
	var (
		source   string
		statuses []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Args:  cobra.NoArgs,
		Short: "List persisted job records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]core.Status, 0, len(statuses))
			for _, s := range statuses {
				st := core.Status(s)
				switch st {
				case core.StatusPending, core.StatusProcessing, core.StatusCompleted, core.StatusFailed:
				default:
					return fmt.Errorf("unknown status %q", s)
				}
				filter = append(filter, st)
			}

			store, err := a.cfg.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.ListJobs(cmd.Context(), source, filter, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tATTEMPTS\tERROR")
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", rec.ID, rec.Source, rec.Status, rec.Attempts, rec.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only jobs of this processor or queue")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only jobs in these statuses")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records to list (0 for all)")
	return cmd
}
