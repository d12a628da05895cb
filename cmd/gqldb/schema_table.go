package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gql-db/gqldb/internal/sqlmirror"
)

func newSchemaTableCmd(s *rootState) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "schema-table",
		Short: "List tables, or run ad-hoc SQL against a SQLite mirror of them",
		Long: `List the tables on the caller's current branch. With --sql, mirrors
every live row of each table into an in-memory SQLite database and runs
the query against it; this mirror is not part of the engine's core
invariants and is rebuilt and discarded on every call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			tables, err := db.TableNames(s.user)
			if err != nil {
				return err
			}
			if query == "" {
				if s.jsonMode {
					return s.printResult("", tables, nil)
				}
				fmt.Println(strings.Join(tables, "\n"))
				return nil
			}

			mirror, err := sqlmirror.Build(db.GetCurrentWorkingBranchPath(s.user), tables)
			if err != nil {
				return err
			}
			defer mirror.Close()

			cols, rows, err := sqlmirror.Query(mirror, query)
			if err != nil {
				return err
			}
			if s.jsonMode {
				return s.printResult("", struct {
					Columns []string   `json:"columns"`
					Rows    [][]string `json:"rows"`
				}{cols, rows}, nil)
			}
			fmt.Println(strings.Join(cols, "\t"))
			for _, r := range rows {
				fmt.Println(strings.Join(r, "\t"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "sql", "", "SQL query to run against an in-memory mirror of the caller's tables")
	return cmd
}
