package cmd

import (
	"fmt"
	"strings"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"
	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchPage   int
	searchDetail int
)

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page to show.")
	searchCmd.Flags().IntVar(&searchDetail, "detail", 0, "Also show the details of the result at this position.")
	rootCmd.AddCommand(searchCmd)
}

// buildQuery turns `key=value` arguments into a query. key is a field id or a
// meaning name (title, author, ...), words without "=" go to the free search
// field.
func buildQuery(fields []opac.SearchField, args []string) ([]opac.SearchQuery, error) {
	byID := map[string]opac.SearchField{}
	byMeaning := map[opac.Meaning]opac.SearchField{}
	var free *opac.SearchField
	for i, f := range fields {
		byID[f.ID] = f
		if _, ok := byMeaning[f.Meaning]; !ok && f.Meaning != opac.MeaningNone {
			byMeaning[f.Meaning] = f
		}
		if free == nil && (f.FreeSearch || f.Meaning == opac.MeaningFree) {
			free = &fields[i]
		}
	}

	query := []opac.SearchQuery{}
	words := []string{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			words = append(words, arg)
			continue
		}
		field, found := byID[key]
		if !found {
			meaning, err := opac.ParseMeaning(key)
			if err == nil {
				field, found = byMeaning[meaning]
			}
		}
		if !found {
			return nil, fmt.Errorf("the library has no search field %q, see the fields command", key)
		}
		query = append(query, opac.SearchQuery{Field: field, Value: value})
	}

	if len(words) > 0 {
		if free == nil {
			return nil, fmt.Errorf("the library has no free search field, use <field>=<value>")
		}
		query = append(query, opac.SearchQuery{Field: *free, Value: strings.Join(words, " ")})
	}
	return query, nil
}

var searchCmd = &cobra.Command{
	Use:   "search <library> [<field>=<value>...] [words...]",
	Short: "Searches the catalogue of a library.",
	Args:  cobra.MinimumNArgs(1),
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

		fields, err := api.SearchFields(ctx)
		if err != nil {
			return err
		}
		query, err := buildQuery(fields, args[1:])
		if err != nil {
			return err
		}

		res, err := api.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("%s", opac.UserMessage(err))
		}
		if searchPage > 1 {
			res, err = api.SearchPage(ctx, searchPage)
			if err != nil {
				return fmt.Errorf("%s", opac.UserMessage(err))
			}
		}
		printResults(res)

		if searchDetail > 0 {
			item, err := api.Detail(ctx, opac.ByPosition(searchDetail))
			if err != nil {
				return fmt.Errorf("%s", opac.UserMessage(err))
			}
			printDetail(item, api)
		}
		return nil
	},
}

func printResults(res opac.SearchRequestResult) {
	t := utils.NewTable()
	t.AppendHeader(table.Row{"#", "ID", "Type", "Status", "Description"})
	for _, r := range res.Results {
		t.AppendRow(table.Row{r.Position, r.ID, r.Type, r.Status, utils.PlainText(r.Description)})
	}
	total := "unknown"
	if res.TotalKnown() {
		total = fmt.Sprint(res.Total)
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("page %d, %s hits", res.Page, total)})
	t.Render()
}
