package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gql-db/gqldb/internal/command"
	"github.com/gql-db/gqldb/internal/database"
)

// newInitCmd creates a brand-new database; unlike every other
// subcommand it must not try to open one first.
func newInitCmd(s *rootState) *cobra.Command {
	var lockTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a new database with a main branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := s.dbName
			if len(args) == 1 {
				name = args[0]
			}
			timeout := lockTimeout
			if timeout == 0 {
				timeout = s.cfg.LockTimeout
			}
			db, err := database.CreateDatabase(s.cfg.DatabasesRoot, name, timeout)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("Initialized database %q at %s\n", name, db.Path())
			return nil
		},
	}
	cmd.Flags().DurationVar(&lockTimeout, "lock-timeout", 0, "override the configured advisory-lock timeout")
	return cmd
}

// newDropCmd deletes a database directory entirely. This is
// destructive and irreversible, so it always asks for confirmation
// unless --yes is given.
func newDropCmd(s *rootState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop [name]",
		Short: "Delete a database and all its branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := s.dbName
			if len(args) == 1 {
				name = args[0]
			}
			if !yes {
				ok, err := confirmf("permanently delete database %q?", name)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
			db, err := database.LoadDatabase(s.cfg.DatabasesRoot, name, s.cfg.LockTimeout)
			if err != nil {
				return err
			}
			return database.DeleteDatabase(db)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

// newVCCmd is the raw passthrough to the text version-control command
// surface: `gqldb vc 'merge src dest "msg" --strategy ours'` reaches
// internal/command.Run directly, for scripting or for commands this
// CLI hasn't grown a dedicated flag set for yet.
func newVCCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "vc <command-line>",
		Short: "Run a raw version-control command line against the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			res, err := command.Run(db, s.user, args[0])
			return s.printResult(res.Text, res.JSON, err)
		},
	}
}
