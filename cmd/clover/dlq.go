package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func dlqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered order events",
	}
	cmd.AddCommand(dlqListCmd())
	cmd.AddCommand(dlqReplayCmd())
	return cmd
}

func dlqListCmd() *cobra.Command {
	var count int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest dead-lettered events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connectRedis(cmd.Context()); err != nil {
				return err
			}

			entries, err := a.dlq.List(cmd.Context(), count)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MESSAGE ID\tSHOP\tORDER\tREASON\tATTEMPTS\tCREATED\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					e.MessageID, e.Entry.ShopID, e.Entry.OrderID, e.Entry.Reason, e.Entry.Attempts,
					e.Entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.Entry.ErrorMessage)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64VarP(&count, "count", "n", 20, "number of entries")
	return cmd
}

func dlqReplayCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "replay <message-id>...",
		Short: "Re-evaluate dead-lettered events and remove the ones that succeed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.connectAll(ctx, true); err != nil {
				return err
			}

			failed := 0
			for _, id := range args {
				entry, err := a.dlq.Get(ctx, id)
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", id)
					failed++
					continue
				}

				outcome, err := a.processor.Replay(ctx, entry)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s %s\n", id, outcome.ShopID, outcome.OrderID, outcome.Action)

				if !keep {
					if err := a.dlq.Delete(ctx, id); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: replayed but not removed: %v\n", id, err)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d entries could not be replayed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "leave replayed entries in the queue")
	return cmd
}
