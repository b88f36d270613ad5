package cmd

import (
	"strings"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fieldsCmd)
}

var fieldsCmd = &cobra.Command{
	Use:   "fields <library>",
	Short: "Prints the search form of a library.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		lib, err := g.Library(args[0])
		if err != nil {
			return err
		}
		api, err := g.Pool.Get(lib, "")
		if err != nil {
			return err
		}
		fields, err := api.SearchFields(cmd.Context())
		if err != nil {
			return err
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"ID", "Name", "Type", "Meaning", "Advanced", "Options"})
		for _, f := range fields {
			options := []string{}
			for _, o := range f.Options {
				if o.Key != "" {
					options = append(options, o.Key+"="+o.Label)
				}
			}
			t.AppendRow(table.Row{f.ID, f.DisplayName, f.Type, f.Meaning, f.Advanced, strings.Join(options, ", ")})
		}
		t.Render()
		return nil
	},
}
