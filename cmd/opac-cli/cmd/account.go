package cmd

import (
	"errors"
	"fmt"
	"time"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/cmd/opac-cli/utils"
	"opacbridge/internal/library"
	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	accountCached bool
	accountMaxAge time.Duration
)

func init() {
	accountCmd.Flags().BoolVar(&accountCached, "cached", false, "Show the last fetched account data, fetch only if it is older than --max-age.")
	accountCmd.Flags().DurationVar(&accountMaxAge, "max-age", time.Hour, "How old cached account data may be.")
	rootCmd.AddCommand(accountCmd)
}

// resolveAccount picks the account for lib and asks for the password when
// accounts.json5 does not hold one.
func resolveAccount(g *globals.Value, lib opac.Library) (opac.Account, error) {
	acc, err := library.FindAccount(g.Accounts, lib.Ident, accountID)
	if err != nil {
		return opac.Account{}, err
	}
	if acc.Library != lib.Ident {
		return opac.Account{}, fmt.Errorf("account %s belongs to %s", acc.ID, acc.Library)
	}
	if acc.Name == "" {
		return opac.Account{}, opac.NewOpacError(opac.ReasonNotConfigured, "the account has no card number")
	}
	if acc.Password == "" {
		acc.Password, err = utils.ReadPassword(fmt.Sprintf("Password for %s at %s: ", acc.Name, lib.DisplayName()))
		if err != nil {
			return opac.Account{}, err
		}
	}
	return acc, nil
}

var accountCmd = &cobra.Command{
	Use:   "account <library>",
	Short: "Shows loans and reservations of an account and records them in the loan history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)
		lib, err := g.Library(args[0])
		if err != nil {
			return err
		}
		acc, err := library.FindAccount(g.Accounts, lib.Ident, accountID)
		if err != nil {
			return err
		}

		cache, err := g.Cache(ctx)
		if err != nil {
			return err
		}
		if accountCached {
			snapshot, ok, err := cache.Load(ctx, lib.Ident, acc.ID)
			if err != nil {
				return err
			}
			if ok && !snapshot.Stale(g.Time.Now(), accountMaxAge) {
				fmt.Printf("cached %s\n", snapshot.RefreshedAt.Format(time.DateTime))
				printAccount(snapshot.Data, g.Time.Now())
				return nil
			}
		}

		acc, err = resolveAccount(g, lib)
		if err != nil {
			return err
		}
		api, err := g.Pool.Get(lib, acc.ID)
		if err != nil {
			return err
		}
		data, err := api.Account(ctx, acc)
		var credErr *opac.CredentialError
		if errors.As(err, &credErr) {
			return fmt.Errorf("login failed: %s", credErr.Error())
		}
		if err != nil {
			return fmt.Errorf("%s", opac.UserMessage(err))
		}
		if data == nil {
			return fmt.Errorf("login failed, the library gave no reason")
		}

		err = cache.Store(ctx, lib.Ident, *data)
		if err != nil {
			return err
		}
		ledger, err := g.Ledger(ctx)
		if err != nil {
			return err
		}
		changes, err := ledger.Update(ctx, lib.Ident, data, g.Time.Now())
		if err != nil {
			return err
		}
		g.Tel.ReportDebug("history", lib.Ident, changes)

		printAccount(*data, g.Time.Now())
		return nil
	},
}

func printAccount(data opac.AccountData, now time.Time) {
	lent := utils.NewTable()
	lent.SetTitle("Loans")
	lent.AppendHeader(table.Row{"Title", "Author", "Due", "Branch", "Status", "Renew token"})
	for _, l := range data.Lent {
		token := l.ProlongToken
		if !l.Renewable {
			token = ""
		}
		lent.AppendRow(table.Row{l.Title, l.Author, l.DueText, l.Branch, l.Status, token})
	}
	lent.Render()

	reserved := utils.NewTable()
	reserved.SetTitle("Reservations")
	reserved.AppendHeader(table.Row{"Title", "Author", "Ready", "Branch", "Status", "Cancel token"})
	for _, r := range data.Reservations {
		reserved.AppendRow(table.Row{r.Title, r.Author, r.Ready, r.Branch, r.Status, r.CancelToken})
	}
	reserved.Render()

	if data.PendingFees != "" {
		fmt.Printf("Fees: %s\n", data.PendingFees)
	}
	if data.ValidUntil != "" {
		fmt.Printf("Card valid until: %s\n", data.ValidUntil)
	}
	if data.Warning != "" {
		fmt.Printf("Note: %s\n", data.Warning)
	}
	for _, l := range data.DueWithin(now, 3*24*time.Hour) {
		fmt.Printf("Due soon: %s (%s)\n", l.Title, l.DueText)
	}
}
