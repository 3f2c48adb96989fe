package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(a *app) *cobra.Command {
	var (
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Args:  cobra.NoArgs,
		Short: "List persisted processor runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.cfg.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), source, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tTOTAL\tSUCCESSFUL\tFAILED\tDURATION\tSTARTED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.ID, run.Source, run.Total, run.Successful, run.Failed,
					run.TotalTime.Round(time.Millisecond), run.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only runs of this processor")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}
