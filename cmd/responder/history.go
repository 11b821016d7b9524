package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/polzovatel/inbox-responder/internal/config"
	"github.com/polzovatel/inbox-responder/internal/journal"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent reply cycles from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			jrnl, err := journal.Open(cmd.Context(), cfg.JournalPath)
			if err != nil {
				return err
			}
			defer jrnl.Close()

			entries, err := jrnl.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSENDER\tFIRST\tOUTCOME\tBACKEND\tREPLY")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
					e.At.Local().Format(time.DateTime), e.Sender, e.FirstMessage, e.Outcome, e.Backend, oneLine(e.Reply, 50))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
