package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetforge/internal/packs"
	"assetforge/internal/pipeline"
	"assetforge/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var catalogFlag string

	cmd := &cobra.Command{
		Use:   "run [pack-id...]",
		Short: "Download, convert, and catalog asset packs",
		Long: "Run processes asset packs through the full pipeline: download the\n" +
			"archive, extract it, locate scene files, convert them to GLB, and\n" +
			"write the asset registry. With no arguments every catalog pack is\n" +
			"processed; pack ids restrict the run to a subset.",
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
			selected, err := packs.Select(catalog, args)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				return errors.New("no packs to process")
			}

			logger, closeLogs, err := ctx.buildLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLogs()

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := pipeline.New(cfg, store, logger).Run(cmd.Context(), selected)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Packs", "Cataloged", "Failed", "Located", "Converted"},
				[][]string{{
					fmt.Sprintf("%d", summary.Packs),
					fmt.Sprintf("%d", summary.Cataloged),
					fmt.Sprintf("%d", len(summary.Failed)),
					fmt.Sprintf("%d", summary.Located),
					fmt.Sprintf("%d", summary.Converted),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "Registry: %s\n", summary.RegistryPath)

			if len(summary.Failed) > 0 {
				return fmt.Errorf("%d pack(s) failed: %s (see `assetforge status`)",
					len(summary.Failed), strings.Join(summary.Failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogFlag, "catalog", "", "Path to a pack catalog file (defaults to the builtin catalog)")
	return cmd
}
