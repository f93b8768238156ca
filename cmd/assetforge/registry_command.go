package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"assetforge/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Show the cataloged assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration unavailable")
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := os.ReadFile(cfg.RegistryPath())
				if err != nil {
					if os.IsNotExist(err) {
						fmt.Fprintln(out, "{}")
						return nil
					}
					return err
				}
				_, err = out.Write(data)
				return err
			}

			reg, err := registry.Load(cfg.RegistryPath())
			if err != nil {
				return err
			}
			if reg.Count() == 0 {
				fmt.Fprintln(out, "Registry is empty. Run `assetforge run` to catalog assets.")
				return nil
			}

			var rows [][]string
			for _, category := range reg.Categories() {
				for _, asset := range reg.Assets(category) {
					rows = append(rows, []string{asset.Category, asset.ID, asset.Name, asset.Path, yesNo(asset.PhysicsEnabled)})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Category", "ID", "Name", "Path", "Physics"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d assets in %d categories (%s)\n", reg.Count(), len(reg.Categories()), cfg.RegistryPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the raw registry document")
	return cmd
}
