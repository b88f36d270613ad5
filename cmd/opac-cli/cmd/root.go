package cmd

import (
	"context"
	"fmt"
	"os"
	"time"
	"opacbridge/cmd/opac-cli/globals"
	"opacbridge/internal/adapters/koha"
	"opacbridge/internal/adapters/sisis"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/library"

	"github.com/spf13/cobra"
)

var (
	configDir string
	dbPath    string
	accountID string
	verbose   bool
	jsonLogs  bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config", "libraries", "Directory holding the <library>.json5 files and accounts.json5.")
	flags.StringVar(&dbPath, "db", "opac.db", "sqlite database for the loan history and cached accounts.")
	flags.StringVar(&accountID, "account", "", "Account id from accounts.json5, defaults to the only account of the library.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug reports, including every http exchange.")
	flags.BoolVar(&jsonLogs, "json", false, "Log as json.")
}

var rootCmd = &cobra.Command{
	Use:          "opac-cli",
	Short:        "opac-cli searches library catalogues and manages library accounts.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, verbose, jsonLogs)

		value, err := setup()
		if err != nil {
			return err
		}
		cmd.SetContext(globals.Set(cmd.Context(), value))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return globals.Get(cmd.Context()).Close()
	},
}

func setup() (*globals.Value, error) {
	tel := telemetry.NewSlogAPI(nil)
	clock := chrono.NewStandardTime(time.Local)

	registry := backend.NewRegistry()
	sisis.Register(registry)
	koha.Register(registry)

	catalogue, err := library.Load(configDir, registry, tel)
	if err != nil {
		return nil, err
	}
	accounts, err := catalogue.LoadAccounts(configDir, tel)
	if err != nil {
		return nil, err
	}

	deps := backend.Deps{Time: clock, Tel: tel}
	return &globals.Value{
		Catalogue: catalogue,
		Accounts:  accounts,
		Pool:      backend.NewPool(registry, deps, 32, 15*time.Minute),
		Time:      clock,
		Tel:       tel,
		DBPath:    dbPath,
	}, nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
