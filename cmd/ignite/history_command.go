package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ignite/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded bootstrap attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d recorded attempts\n", n)
				return nil
			}

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []journal.Entry{}
			}
			handled, err := writeStructured(cmd, ctx.outputFlag, entries)
			if handled || err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum attempts to show (0 for all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded attempts")
	return cmd
}

func renderHistoryTable(entries []journal.Entry) string {
	headers := []string{"ID", "When", "Trigger", "Outcome", "Steps", "Retries", "Duration", "Error"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		errText := e.Message
		if e.Action != "" {
			errText = strings.TrimSpace(errText + " → " + e.Action)
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			humanize.Time(e.StartedAt),
			e.Trigger,
			e.Outcome,
			strconv.Itoa(e.StepsCompleted),
			strconv.Itoa(e.Retries),
			e.Duration().Round(time.Millisecond).String(),
			errText,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft})
}
