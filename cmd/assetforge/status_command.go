package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assetforge/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pack processing state from the last runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration unavailable")
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No packs processed yet. Start with `assetforge run`.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				detail := record.StageMessage
				if record.Status == queue.StatusFailed {
					detail = record.ErrorMessage
				}
				rows = append(rows, []string{
					record.PackID,
					record.Category,
					string(record.Status),
					fmt.Sprintf("%d", record.LocatedCount),
					fmt.Sprintf("%d", record.ConvertedCount),
					formatUpdated(record.UpdatedAt),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Pack", "Category", "Status", "Located", "Converted", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d total: %d cataloged, %d failed, %d in flight, %d pending\n",
				health.Total, health.Cataloged, health.Failed, health.InFlight, health.Pending)
			return nil
		},
	}
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
