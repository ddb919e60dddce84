// Command importer provisions asker and consultant accounts from delimited
// import files. Each row creates an identity-provider account, logs it into
// the chat backend and persists the domain record; every row is written to
// the import protocol.
//
// Usage:
//
//	importer import-askers <file>
//	importer import-askers-without-session <file>
//	importer import-consultants <file>
//	importer migrate
//
// Flags:
//
//	--config   path to the YAML config file (default: $CONFIG_PATH or ./config.yaml)
//	--dry-run  validate rows and write the protocol without external calls
//
// Exit codes: 0 = success, 1 = error or aborted batch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/account-import/internal/app"
	"github.com/heartmarshall/account-import/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &app.Options{}

	root := &cobra.Command{
		Use:          "importer",
		Short:        "Bulk import of asker and consultant accounts",
		Version:      app.BuildVersion(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	root.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "validate rows and write the protocol without external calls")

	root.AddCommand(
		newImportCmd(opts, "import-askers", "Import askers and create their first session", domain.VariantAsker),
		newImportCmd(opts, "import-askers-without-session", "Import askers linked to an agency only", domain.VariantAskerWithoutSession),
		newImportCmd(opts, "import-consultants", "Import consultants and join them to open rooms", domain.VariantConsultant),
		newMigrateCmd(opts),
	)
	return root
}

func newImportCmd(opts *app.Options, use, short string, variant domain.Variant) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := app.RunImport(cmd.Context(), *opts, variant, args[0])
			if sum.Processed > 0 || sum.LogPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(),
					"processed=%d succeeded=%d skipped=%d failed=%d protocol=%s\n",
					sum.Processed, sum.Succeeded, sum.Skipped, sum.Failed, sum.LogPath,
				)
			}
			return err
		},
	}
}

func newMigrateCmd(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), *opts)
		},
	}
}
