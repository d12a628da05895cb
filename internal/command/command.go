// Package command parses the version-control command surface (commit,
// log, info, status, squash, revert, discard, create, list, switch,
// merge, delete, branch_view, schema_table, user) and executes each
// against an internal/database.Database. It is the text-command layer
// cmd/gqldb's cobra frontend and any other caller feed user input
// through.
package command

import (
	"fmt"
	"strings"

	"github.com/gql-db/gqldb/internal/branchmerge"
	"github.com/gql-db/gqldb/internal/commitstore"
	"github.com/gql-db/gqldb/internal/database"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/sqlmirror"
)

// Result is what a parsed command produces. Text is always populated;
// JSON is only meaningful when the caller asked for --json and the
// command supports it.
type Result struct {
	Text string
	JSON any
}

// Run tokenizes line, dispatches to the matching subcommand, and
// executes it against db on behalf of userID.
func Run(db *database.Database, userID, line string) (Result, error) {
	args, err := tokenize(line)
	if err != nil {
		return Result{}, err
	}
	if len(args) == 0 {
		return Result{}, dberrors.ConstraintF("empty command")
	}
	name, rest := args[0], args[1:]
	switch name {
	case "commit":
		return runCommit(db, userID, rest)
	case "log":
		return runLog(db, userID, rest)
	case "info":
		return runInfo(db, userID, rest)
	case "status":
		return runStatus(db, userID, rest)
	case "squash":
		return runSquash(db, userID, rest)
	case "revert":
		return runRevert(db, userID, rest)
	case "discard":
		return runDiscard(db, userID, rest)
	case "create", "branch":
		return runCreateBranch(db, userID, rest)
	case "list":
		return runListBranches(db, userID, rest)
	case "switch":
		return runSwitchBranch(db, userID, rest)
	case "merge":
		return runMerge(db, userID, rest)
	case "delete", "del":
		return runDeleteBranch(db, userID, rest)
	case "branch_view":
		return runBranchView(db, userID, rest)
	case "schema_table":
		return runSchemaTable(db, userID, rest)
	case "user":
		return runUser(db, userID, rest)
	default:
		return Result{}, dberrors.ConstraintF("unknown command %q", name)
	}
}

// tokenize splits a command line on whitespace, honoring double-quoted
// substrings so commit/merge messages may contain spaces.
func tokenize(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false
	flush := func() {
		if hasToken {
			args = append(args, cur.String())
			cur.Reset()
			hasToken = false
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			hasToken = true
		case c == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
			hasToken = true
		}
	}
	if inQuotes {
		return nil, dberrors.ConstraintF("unterminated quoted argument")
	}
	flush()
	return args, nil
}

// flags pulls `--name value`/`-n value` and bare `--name`/`-n` boolean
// switches out of args, returning the remaining positional arguments.
type flags struct {
	values map[string]string
	bools  map[string]bool
}

func parseFlags(args []string, boolFlags map[string]bool) ([]string, flags) {
	f := flags{values: map[string]string{}, bools: map[string]bool{}}
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			positional = append(positional, a)
			continue
		}
		name := strings.TrimLeft(a, "-")
		if boolFlags[name] {
			f.bools[name] = true
			continue
		}
		if i+1 < len(args) {
			f.values[name] = args[i+1]
			i++
		}
	}
	return positional, f
}

func runCommit(db *database.Database, userID string, args []string) (Result, error) {
	pos, f := parseFlags(args, nil)
	_ = pos
	msg, ok := f.values["m"]
	if !ok {
		msg, ok = f.values["message"]
	}
	if !ok {
		return Result{}, dberrors.ConstraintF("commit requires -m <message>")
	}
	c, err := db.Commit(msg, userID)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Committed %s: %s", c.Hash, c.Message), JSON: c}, nil
}

func runLog(db *database.Database, userID string, args []string) (Result, error) {
	_, f := parseFlags(args, map[string]bool{"json": true})
	entries, err := db.Log(userID)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{Text: "No Commits!", JSON: []commitstore.Commit{}}, nil
	}
	var b strings.Builder
	for _, c := range entries {
		fmt.Fprintf(&b, "Commit: %s\nMessage: %s\nTimestamp: %s\n-----------------------\n",
			c.Hash, c.Message, c.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	}
	if f.bools["json"] {
		return Result{Text: b.String(), JSON: entries}, nil
	}
	return Result{Text: b.String()}, nil
}

func runInfo(db *database.Database, userID string, args []string) (Result, error) {
	pos, f := parseFlags(args, map[string]bool{"json": true})
	if len(pos) < 1 {
		return Result{}, dberrors.ConstraintF("info requires <hash>")
	}
	c, err := db.CommitInfo(pos[0])
	if err != nil {
		return Result{}, err
	}
	text := fmt.Sprintf("Commit: %s\nMessage: %s\nTimestamp: %s\nDiffs: %d",
		c.Hash, c.Message, c.Timestamp.Format("2006-01-02T15:04:05Z07:00"), len(c.Diffs))
	if f.bools["json"] {
		return Result{Text: text, JSON: c}, nil
	}
	return Result{Text: text}, nil
}

func runStatus(db *database.Database, userID string, args []string) (Result, error) {
	pending := db.PendingDiffCount(userID)
	if pending == 0 {
		return Result{Text: "No uncommitted changes.", JSON: pending}, nil
	}
	return Result{Text: fmt.Sprintf("%d uncommitted change(s).", pending), JSON: pending}, nil
}

func runSquash(db *database.Database, userID string, args []string) (Result, error) {
	pos, _ := parseFlags(args, nil)
	if len(pos) < 2 {
		return Result{}, dberrors.ConstraintF("squash requires <first-hash> <last-hash>")
	}
	c, err := db.Squash(pos[0], pos[1], userID)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Squashed into %s", c.Hash), JSON: c}, nil
}

func runRevert(db *database.Database, userID string, args []string) (Result, error) {
	pos, _ := parseFlags(args, nil)
	if len(pos) < 1 {
		return Result{}, dberrors.ConstraintF("revert requires <hash>")
	}
	c, err := db.Revert(pos[0], userID)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Reverted as %s", c.Hash), JSON: c}, nil
}

func runDiscard(db *database.Database, userID string, args []string) (Result, error) {
	db.Discard(userID)
	return Result{Text: "Discarded uncommitted changes."}, nil
}

func runCreateBranch(db *database.Database, userID string, args []string) (Result, error) {
	pos, _ := parseFlags(args, nil)
	if len(pos) < 1 {
		return Result{}, dberrors.ConstraintF("create requires <branch-name>")
	}
	if err := db.CreateBranch(pos[0], userID); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Branch %s created", pos[0])}, nil
}

func runListBranches(db *database.Database, userID string, args []string) (Result, error) {
	branches, err := db.ListBranches()
	if err != nil {
		return Result{}, err
	}
	return Result{Text: strings.Join(branches, "\n"), JSON: branches}, nil
}

func runSwitchBranch(db *database.Database, userID string, args []string) (Result, error) {
	pos, _ := parseFlags(args, nil)
	if len(pos) < 1 {
		return Result{}, dberrors.ConstraintF("switch requires <branch-name>")
	}
	if err := db.SwitchBranch(pos[0], userID); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Switched to %s", pos[0])}, nil
}

func runMerge(db *database.Database, userID string, args []string) (Result, error) {
	pos, f := parseFlags(args, map[string]bool{"delete_src": true})
	if len(pos) < 3 {
		return Result{}, dberrors.ConstraintF("merge requires <src> <dest> <message>")
	}
	strategy, err := branchmerge.ParseStrategy(f.values["strategy"])
	if err != nil {
		return Result{}, err
	}
	result, err := db.Merge(pos[0], pos[1], pos[2], strategy, f.bools["delete_src"])
	if err != nil {
		return Result{}, err
	}
	if len(result.Conflicts) > 0 {
		return Result{
			Text: fmt.Sprintf("Merged with %d conflict(s) resolved via %s", len(result.Conflicts), strategy),
			JSON: result,
		}, nil
	}
	return Result{Text: fmt.Sprintf("Merged as %s", result.Commit.Hash), JSON: result}, nil
}

func runDeleteBranch(db *database.Database, userID string, args []string) (Result, error) {
	pos, f := parseFlags(args, map[string]bool{"force": true})
	if len(pos) < 1 {
		return Result{}, dberrors.ConstraintF("delete requires <branch-name>")
	}
	if err := db.DeleteBranch(pos[0], userID, f.bools["force"]); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Branch %s deleted", pos[0])}, nil
}

func runBranchView(db *database.Database, userID string, args []string) (Result, error) {
	view, err := db.BranchView()
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	for branch, loc := range view.Heads {
		node := view.Nodes[loc]
		fmt.Fprintf(&b, "%s -> %s\n", branch, node.Hash)
	}
	return Result{Text: strings.TrimRight(b.String(), "\n"), JSON: view}, nil
}

// runSchemaTable lists the tables on the caller's branch, or, when
// --sql is given, mirrors them into SQLite and runs the query as
// ad-hoc inspection. Not part of core invariants: the mirror is
// rebuilt from scratch on every call and discarded afterward.
func runSchemaTable(db *database.Database, userID string, args []string) (Result, error) {
	pos, f := parseFlags(args, map[string]bool{"json": true})
	tables, err := db.TableNames(userID)
	if err != nil {
		return Result{}, err
	}
	query, ok := f.values["sql"]
	if !ok {
		if f.bools["json"] {
			return Result{Text: strings.Join(tables, "\n"), JSON: tables}, nil
		}
		return Result{Text: strings.Join(tables, "\n")}, nil
	}
	_ = pos

	mirror, err := sqlmirror.Build(db.GetCurrentWorkingBranchPath(userID), tables)
	if err != nil {
		return Result{}, err
	}
	defer mirror.Close()

	cols, rows, err := sqlmirror.Query(mirror, query)
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(strings.Join(r, "\t"))
		b.WriteByte('\n')
	}
	text := strings.TrimRight(b.String(), "\n")
	if f.bools["json"] {
		return Result{Text: text, JSON: struct {
			Columns []string   `json:"columns"`
			Rows    [][]string `json:"rows"`
		}{cols, rows}}, nil
	}
	return Result{Text: text}, nil
}

func runUser(db *database.Database, userID string, args []string) (Result, error) {
	current, all, err := db.Users(userID)
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current user: %s\n", current)
	for _, u := range all {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return Result{Text: strings.TrimRight(b.String(), "\n"), JSON: struct {
		Current string   `json:"current"`
		All     []string `json:"all"`
	}{current, all}}, nil
}
