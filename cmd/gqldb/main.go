// Command gqldb is the command-line front end for the storage-plus-
// version-control engine: a thin cobra CLI whose subcommands call the
// internal/database facade directly; only `vc` hands a text command
// string to internal/command.Run.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/gql-db/gqldb/internal/dbconfig"
)

func main() {
	cfg, err := dbconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gqldb:", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gqldb:", err)
		os.Exit(1)
	}
}

// setupLogging points slog at a rotating log file under the databases
// root rather than stderr, so interactive CLI output (cliview) stays
// clean; errors are still echoed to stderr by main and each command.
func setupLogging(cfg dbconfig.Config) {
	logDir := filepath.Join(cfg.DatabasesRoot, ".logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "gqldb.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(logFile, opts)
	} else {
		handler = slog.NewTextHandler(logFile, opts)
	}
	slog.SetDefault(slog.New(handler))
}
