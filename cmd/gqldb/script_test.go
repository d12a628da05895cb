package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"

	"github.com/gql-db/gqldb/internal/command"
	"github.com/gql-db/gqldb/internal/database"
)

// gqldbScriptCmd adapts internal/command.Run into a script.Cmd so
// testdata/script/*.txt can drive the engine end to end ("gqldb
// <dir> <db> <user> <command line...>") the same way a real session
// would, without re-exec'ing the built binary. Databases opened
// during a script are cached by (dir, db) for the script's lifetime
// so successive "gqldb" lines see one another's state.
func gqldbScriptCmd(open map[string]*database.Database) script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "run a version-control command line against a gqldb database",
			Args:    "dir db user command-line...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) < 4 {
				return nil, fmt.Errorf("usage: gqldb dir db user <command...>")
			}
			dir, name, user := args[0], args[1], args[2]
			line := strings.Join(args[3:], " ")

			key := dir + "\x00" + name
			db, ok := open[key]
			if !ok {
				var err error
				db, err = database.LoadDatabase(dir, name, 0)
				if err != nil {
					db, err = database.CreateDatabase(dir, name, 0)
				}
				if err != nil {
					return nil, err
				}
				open[key] = db
			}

			res, runErr := command.Run(db, user, line)
			return func(*script.State) (stdout, stderr string, err error) {
				if runErr != nil {
					return "", runErr.Error(), runErr
				}
				return res.Text, "", nil
			}, nil
		},
	)
}

func TestScripts(t *testing.T) {
	open := map[string]*database.Database{}
	defer func() {
		for _, db := range open {
			db.Close()
		}
	}()

	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["gqldb"] = gqldbScriptCmd(open)

	scripttest.Test(t, context.Background(), engine, os.Environ(), "testdata/script/*.txt")
}
