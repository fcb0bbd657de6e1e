package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPendingCommand(rootOpts *rootOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the number of pending records per box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boxes, err := rootOpts.cfg.selectBoxes(names)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			base, stores, err := rootOpts.openStores(ctx, boxes)
			if err != nil {
				return err
			}
			defer base.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BOX\tKIND\tTABLE\tPENDING")
			for _, box := range boxes {
				store := stores[box.Name]
				count, err := store.PendingCount(ctx)
				if err != nil {
					return fmt.Errorf("box %q: %w", box.Name, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", box.Name, box.Kind, store.Table(), count)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&names, "box", nil, "limit to these boxes (repeatable)")

	return cmd
}
