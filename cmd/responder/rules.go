package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polzovatel/inbox-responder/internal/reply"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect reply rule files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a rule file and list its rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rulesPath(args)
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rules, err := reply.ParseRules(data, reply.FormatFor(path))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSCOPE\tMATCHERS\tTEMPLATE")
			for i, r := range rules {
				matchers := strings.Join(r.Matchers, ", ")
				if matchers == "" {
					matchers = "(any)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.Scope, matchers, oneLine(r.Template, 60))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", path, len(rules))
			return nil
		},
	})
	return cmd
}

func rulesPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	_ = godotenv.Load()
	if v := strings.TrimSpace(os.Getenv("RESPONDER_RULES")); v != "" {
		return v
	}
	return "answers.json"
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
