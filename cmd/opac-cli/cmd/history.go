package cmd

import (
	"fmt"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyClear  bool
	historyRemove int64
)

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Forget the whole history of the library.")
	historyCmd.Flags().Int64Var(&historyRemove, "remove", 0, "Forget the entry with this id.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <library>",
	Short: "Shows the loan history recorded by the account command.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)
		lib, err := g.Library(args[0])
		if err != nil {
			return err
		}
		ledger, err := g.Ledger(ctx)
		if err != nil {
			return err
		}

		switch {
		case historyClear:
			return ledger.Clear(ctx, lib.Ident)
		case historyRemove > 0:
			entry, ok, err := ledger.Get(ctx, historyRemove)
			if err != nil {
				return err
			}
			if !ok || entry.Library != lib.Ident {
				return fmt.Errorf("%s has no history entry %d", lib.Ident, historyRemove)
			}
			return ledger.Remove(ctx, historyRemove)
		}

		entries, err := ledger.History(ctx, lib.Ident)
		if err != nil {
			return err
		}
		t := utils.NewTable()
		t.AppendHeader(table.Row{"ID", "Title", "Author", "Format", "From", "Until", "Renewed", "Lent"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				e.ID,
				e.Title,
				e.Author,
				e.Format,
				e.FirstSeen.Format("02.01.2006"),
				e.LastSeen.Format("02.01.2006"),
				e.ProlongCount,
				e.Lending,
			})
		}
		t.Render()
		return nil
	},
}
