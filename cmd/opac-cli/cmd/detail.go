package cmd

import (
	"fmt"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var detailVolumes bool

func init() {
	detailCmd.Flags().BoolVar(&detailVolumes, "volumes", false, "Also list the other volumes of a multi-volume work.")
	rootCmd.AddCommand(detailCmd)
}

var detailCmd = &cobra.Command{
	Use:   "detail <library> <id>",
	Short: "Shows an item with its copies.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)
		lib, err := g.Library(args[0])
		if err != nil {
			return err
		}
		api, err := g.Pool.Get(lib, "")
		if err != nil {
			return err
		}

		item, err := api.Detail(ctx, opac.ByID(args[1]))
		if err != nil {
			return fmt.Errorf("%s", opac.UserMessage(err))
		}
		printDetail(item, api)

		if detailVolumes && item.Volume != nil {
			res, err := api.Search(ctx, opac.VolumeQuery(*item.Volume))
			if err != nil {
				return fmt.Errorf("%s", opac.UserMessage(err))
			}
			printResults(res)
		}
		return nil
	},
}

var copyColumns = []opac.CopyKey{
	opac.CopyBranch,
	opac.CopyDepartment,
	opac.CopyLocation,
	opac.CopyShelfmark,
	opac.CopyStatus,
	opac.CopyReturnDate,
	opac.CopyReservations,
	opac.CopyBarcode,
	opac.CopyURL,
}

func printDetail(item opac.DetailedItem, api backend.API) {
	t := utils.NewTable()
	t.SetTitle(item.Title)
	t.AppendRow(table.Row{"ID", item.ID})
	t.AppendRow(table.Row{"Type", item.Type})
	if item.Cover != "" {
		t.AppendRow(table.Row{"Cover", item.Cover})
	}
	for _, d := range item.Details {
		t.AppendRow(table.Row{d.Label, d.Value})
	}
	t.AppendRow(table.Row{"Reservable", item.Reservable})
	if item.Bookable {
		t.AppendRow(table.Row{"Bookable", item.Bookable})
	}
	if item.Volume != nil {
		t.AppendRow(table.Row{"Volume of", item.Volume.Title})
	}
	if link, ok := api.ShareURL(item.ID, item.Title); ok {
		t.AppendRow(table.Row{"Link", link})
	}
	t.Render()

	if len(item.Copies) == 0 {
		return
	}
	// only the columns some copy has a value for
	columns := []opac.CopyKey{}
	for _, key := range copyColumns {
		for _, c := range item.Copies {
			if c.Get(key) != "" {
				columns = append(columns, key)
				break
			}
		}
	}
	copies := utils.NewTable()
	header := table.Row{}
	for _, key := range columns {
		header = append(header, string(key))
	}
	copies.AppendHeader(header)
	for _, c := range item.Copies {
		row := table.Row{}
		for _, key := range columns {
			row = append(row, c.Get(key))
		}
		copies.AppendRow(row)
	}
	copies.Render()
}
