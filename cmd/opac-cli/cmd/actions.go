package cmd

import (
	"fmt"
	"os"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/internal/backend"
	"opacbridge/internal/opac"
	"opacbridge/internal/workflow"

	"github.com/spf13/cobra"
)

var prolongAll bool

func init() {
	prolongCmd.Flags().BoolVar(&prolongAll, "all", false, "Renew every loan of the account, no token needed.")
	rootCmd.AddCommand(reserveCmd, bookCmd, prolongCmd, cancelCmd)
}

// accountAPI returns the adapter instance of the account used for lib.
func accountAPI(g *globals.Value, ident string) (backend.API, opac.Account, error) {
	lib, err := g.Library(ident)
	if err != nil {
		return nil, opac.Account{}, err
	}
	acc, err := resolveAccount(g, lib)
	if err != nil {
		return nil, opac.Account{}, err
	}
	api, err := g.Pool.Get(lib, acc.ID)
	if err != nil {
		return nil, opac.Account{}, err
	}
	return api, acc, nil
}

func runWorkflow(cmd *cobra.Command, w *workflow.Workflow) error {
	g := globals.Get(cmd.Context())
	state := workflow.Run(cmd.Context(), w, newTerminalCallbacks(os.Stdout))
	for _, entry := range w.Transcript() {
		g.Tel.ReportDebug("workflow step", w.ID.String(), entry.Status, entry.Detail)
	}
	if state != workflow.Succeeded {
		return fmt.Errorf("%s %s", w.Kind, state)
	}
	return nil
}

var reserveCmd = &cobra.Command{
	Use:   "reserve <library> <id>",
	Short: "Reserves an item, asking for the pickup branch and confirmation when the library wants them.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		api, acc, err := accountAPI(g, args[0])
		if err != nil {
			return err
		}
		item, err := api.Detail(cmd.Context(), opac.ByID(args[1]))
		if err != nil {
			return fmt.Errorf("%s", opac.UserMessage(err))
		}
		return runWorkflow(cmd, workflow.Reserve(api, item, acc, g.Time, g.Tel))
	},
}

var bookCmd = &cobra.Command{
	Use:   "book <library> <id>",
	Short: "Books an item for a date, only some libraries offer this.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		api, acc, err := accountAPI(g, args[0])
		if err != nil {
			return err
		}
		if !api.Features().Has(backend.FeatureBooking) {
			return fmt.Errorf("%s", opac.UserMessage(backend.Unsupported()))
		}
		item, err := api.Detail(cmd.Context(), opac.ByID(args[1]))
		if err != nil {
			return fmt.Errorf("%s", opac.UserMessage(err))
		}
		return runWorkflow(cmd, workflow.Book(api, item, acc, g.Time, g.Tel))
	},
}

var prolongCmd = &cobra.Command{
	Use:   "prolong <library> [<token>]",
	Short: "Renews a loan, the token is listed by the account command.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		api, acc, err := accountAPI(g, args[0])
		if err != nil {
			return err
		}
		if prolongAll {
			return runWorkflow(cmd, workflow.ProlongAll(api, acc, g.Time, g.Tel))
		}
		if len(args) < 2 {
			return fmt.Errorf("a token is needed unless --all is given")
		}
		return runWorkflow(cmd, workflow.Prolong(api, args[1], acc, g.Time, g.Tel))
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <library> <token>",
	Short: "Cancels a reservation, the token is listed by the account command.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		api, acc, err := accountAPI(g, args[0])
		if err != nil {
			return err
		}
		return runWorkflow(cmd, workflow.Cancel(api, args[1], acc, g.Time, g.Tel))
	},
}
