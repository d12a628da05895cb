package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gql-db/gqldb/internal/database"
	"github.com/gql-db/gqldb/internal/dbconfig"
)

// rootState carries the resolved config and actor identity down to
// every subcommand; the database handle itself is opened lazily by
// openDatabase since `init` must run without one existing yet.
type rootState struct {
	cfg      dbconfig.Config
	dbName   string
	user     string
	jsonMode bool
}

func newRootCmd(cfg dbconfig.Config) *cobra.Command {
	state := &rootState{cfg: cfg}

	root := &cobra.Command{
		Use:   "gqldb",
		Short: "Version-controlled relational storage engine",
		Long: `gqldb drives the storage-plus-version-control engine: tables with
schemas and B+-tree indexes, committed as deltas onto a branch DAG
that supports switch, squash, revert, and merge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&state.dbName, "db", "default", "database name")
	root.PersistentFlags().StringVar(&state.user, "user", cfg.Actor, "acting user")
	root.PersistentFlags().BoolVar(&state.jsonMode, "json", false, "emit machine-readable JSON")

	root.AddCommand(
		newInitCmd(state),
		newDropCmd(state),
		newConfigCmd(state),
		newVCCmd(state),
		newCommitCmd(state),
		newLogCmd(state),
		newInfoCmd(state),
		newStatusCmd(state),
		newSquashCmd(state),
		newRevertCmd(state),
		newDiscardCmd(state),
		newCreateBranchCmd(state),
		newListBranchesCmd(state),
		newSwitchCmd(state),
		newMergeCmd(state),
		newDeleteBranchCmd(state),
		newBranchViewCmd(state),
		newSchemaTableCmd(state),
		newUserCmd(state),
	)
	return root
}

func (s *rootState) openDatabase() (*database.Database, error) {
	return database.LoadDatabase(s.cfg.DatabasesRoot, s.dbName, s.cfg.LockTimeout)
}

// printResult returns err unchanged when it is non-nil; otherwise it
// prints jsonVal as indented JSON in jsonMode (when jsonVal is non-nil)
// or text. The process still exits non-zero on error, but by returning
// the error up through cobra rather than calling os.Exit mid-command.
func (s *rootState) printResult(text string, jsonVal any, err error) error {
	if err != nil {
		return err
	}
	if s.jsonMode && jsonVal != nil {
		enc, mErr := json.MarshalIndent(jsonVal, "", "  ")
		if mErr != nil {
			return mErr
		}
		fmt.Println(string(enc))
		return nil
	}
	fmt.Println(text)
	return nil
}
