package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gql-db/gqldb/internal/dbconfig"
)

// newConfigCmd writes the currently resolved configuration out as a
// starter project config file, so `gqldb config init` gives a caller
// something to edit instead of hunting down every GQLDB_ environment
// variable by hand.
func newConfigCmd(s *rootState) *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold gqldb's configuration file",
	}
	root.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the resolved configuration to .gqldb/config.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(cwd, ".gqldb", "config.yaml")
			if err := dbconfig.WriteDefault(path, s.cfg); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	})
	return root
}
