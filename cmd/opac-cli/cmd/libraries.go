package cmd

import (
	"fmt"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(librariesCmd)
}

var librariesCmd = &cobra.Command{
	Use:   "libraries [filter]",
	Short: "Lists the configured libraries, optionally only those whose name contains filter.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())

		libs := g.Catalogue.All()
		if len(args) == 1 {
			libs = g.Catalogue.Find(args[0])
		}

		accounts := map[string]int{}
		for _, a := range g.Accounts {
			accounts[a.Library]++
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Ident", "Name", "API", "Group", "Location", "Accounts"})
		for _, lib := range libs {
			location := ""
			if lib.Geo != nil {
				location = fmt.Sprintf("%.4f, %.4f", lib.Geo.Lat, lib.Geo.Lon)
			}
			t.AppendRow(table.Row{lib.Ident, lib.DisplayName(), lib.API, lib.Group, location, accounts[lib.Ident]})
		}
		t.Render()
		return nil
	},
}
