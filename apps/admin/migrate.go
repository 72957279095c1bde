package main

import (
	"github.com/spf13/cobra"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/kujifunza/fs"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run goose migration commands against the database",
		Long: `Commands:
  up                   Migrate the DB to the most recent version available
  up-by-one            Migrate the DB up by 1
  up-to VERSION        Migrate the DB to a specific VERSION
  down                 Roll back the version by 1
  down-to VERSION      Roll back to a specific VERSION
  redo                 Re-run the latest migration
  reset                Roll back all migrations
  status               Dump the migration status for the current DB
  version              Print the current version of the database
  create NAME [sql|go] Creates new migration file with the current timestamp
  fix                  Apply sequential ordering to migrations`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) migrate(command string, args ...string) error {
	return gooseRunFunc(command, cli.db, appfs.FS, "migrations", args...)
}
