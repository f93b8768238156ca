package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetforge/internal/packs"
)

func newPacksCommand(ctx *commandContext) *cobra.Command {
	var catalogFlag string

	cmd := &cobra.Command{
		Use:   "packs",
		Short: "List the packs available to process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration unavailable")
			}

			catalogPath := strings.TrimSpace(catalogFlag)
			if catalogPath == "" {
				catalogPath = cfg.Paths.CatalogPath
			}
			catalog, err := packs.Load(catalogPath)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(catalog))
			for _, pack := range catalog {
				rows = append(rows, []string{pack.ID, pack.Category, yesNo(pack.Physics), pack.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Category", "Physics", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogFlag, "catalog", "", "Path to a pack catalog file (defaults to the builtin catalog)")
	return cmd
}
