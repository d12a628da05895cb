package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gql-db/gqldb/internal/branchmerge"
	"github.com/gql-db/gqldb/internal/cliview"
	"github.com/gql-db/gqldb/internal/database"
	"github.com/gql-db/gqldb/internal/dberrors"
)

// watchStatus reports every external change to userID's working
// directory until interrupted, for `status --watch`.
func watchStatus(db *database.Database, userID string) error {
	notify := make(chan string, 16)
	w, err := db.WatchWorkingDirectory(userID, func(path string) { notify <- path })
	if err != nil {
		return err
	}
	defer w.Close()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)

	fmt.Println("Watching for external changes. Press Ctrl+C to stop.")
	for {
		select {
		case path := <-notify:
			fmt.Printf("changed: %s\n", path)
		case <-sigc:
			return nil
		}
	}
}

func newCommitCmd(s *rootState) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the caller's accumulated diffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return dberrors.ConstraintF("commit requires -m <message>")
			}
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			c, err := db.Commit(message, s.user)
			if err != nil {
				return err
			}
			return s.printResult(fmt.Sprintf("Committed %s: %s", c.Hash, c.Message), c, nil)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func newLogCmd(s *rootState) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the caller's current branch history, tip-to-root",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			commits, err := db.Log(s.user)
			if err != nil {
				return err
			}
			if since != "" {
				t, err := parseSince(since)
				if err != nil {
					return err
				}
				filtered := commits[:0:0]
				for _, c := range commits {
					if !c.Timestamp.Before(t) {
						filtered = append(filtered, c)
					}
				}
				commits = filtered
			}
			if s.jsonMode {
				enc, err := json.MarshalIndent(commits, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(enc))
				return nil
			}
			fmt.Println(cliview.RenderLog(db.CurrentBranchName(s.user), commits))
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only show commits at or after this natural-language time (e.g. \"3 days ago\")")
	return cmd
}

func newInfoCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "info <hash>",
		Short: "Show one commit's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			c, err := db.CommitInfo(args[0])
			if err != nil {
				return err
			}
			if s.jsonMode {
				return s.printResult("", c, nil)
			}
			fmt.Println(cliview.RenderInfo(c))
			return nil
		},
	}
}

func newStatusCmd(s *rootState) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many uncommitted diffs the caller has pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			pending := db.PendingDiffCount(s.user)
			if s.jsonMode {
				if err := s.printResult("", pending, nil); err != nil {
					return err
				}
			} else {
				fmt.Println(cliview.RenderStatus(db.CurrentBranchName(s.user), pending))
			}
			if !watch {
				return nil
			}
			return watchStatus(db, s.user)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and report table files changed outside gqldb, until interrupted")
	return cmd
}

func newSquashCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "squash <first-hash> <last-hash>",
		Short: "Fold a contiguous, unshared commit chain into one commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			c, err := db.Squash(args[0], args[1], s.user)
			if err != nil {
				return err
			}
			return s.printResult(fmt.Sprintf("Squashed into %s", c.Hash), c, nil)
		},
	}
}

func newRevertCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <hash>",
		Short: "Commit the reverse of a prior commit's diffs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			c, err := db.Revert(args[0], s.user)
			if err != nil {
				return err
			}
			return s.printResult(fmt.Sprintf("Reverted as %s", c.Hash), c, nil)
		},
	}
}

func newDiscardCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop the caller's uncommitted diffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			db.Discard(s.user)
			fmt.Println("Discarded uncommitted changes.")
			return nil
		},
	}
}

func newCreateBranchCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "create <branch>",
		Short: "Fork a new branch from the caller's current tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.CreateBranch(args[0], s.user); err != nil {
				return err
			}
			fmt.Printf("Branch %s created\n", args[0])
			return nil
		},
	}
}

func newListBranchesCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			branches, err := db.ListBranches()
			if err != nil {
				return err
			}
			if s.jsonMode {
				return s.printResult("", branches, nil)
			}
			for _, b := range branches {
				fmt.Println(b)
			}
			return nil
		},
	}
}

func newSwitchCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch>",
		Short: "Move the caller onto another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SwitchBranch(args[0], s.user); err != nil {
				return err
			}
			fmt.Printf("Switched to %s\n", args[0])
			return nil
		},
	}
}

func newMergeCmd(s *rootState) *cobra.Command {
	var strategy string
	var deleteSrc bool
	cmd := &cobra.Command{
		Use:   "merge <src> <dest> <message>",
		Short: "Fold src's diffs since the common ancestor into dest",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := branchmerge.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := db.Merge(args[0], args[1], args[2], strat, deleteSrc)
			// When the caller didn't pin --strategy and the default
			// clean merge hit a conflict, let them pick a resolution
			// interactively instead of failing outright.
			if err != nil && !cmd.Flags().Changed("strategy") && errors.Is(err, dberrors.MergeConflict) {
				chosen, pickErr := pickMergeStrategy(len(result.Conflicts))
				if pickErr != nil {
					return pickErr
				}
				strategy = chosen
				strat, err = branchmerge.ParseStrategy(strategy)
				if err != nil {
					return err
				}
				result, err = db.Merge(args[0], args[1], args[2], strat, deleteSrc)
			}
			if err != nil {
				return err
			}
			if len(result.Conflicts) > 0 {
				return s.printResult(
					fmt.Sprintf("Merged with %d conflict(s) resolved via %s", len(result.Conflicts), strategy),
					result, nil)
			}
			return s.printResult(fmt.Sprintf("Merged as %s", result.Commit.Hash), result, nil)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "clean", "conflict resolution: clean, ours, or theirs")
	cmd.Flags().BoolVar(&deleteSrc, "delete-src", false, "delete the source branch once the merge succeeds")
	return cmd
}

func newDeleteBranchCmd(s *rootState) *cobra.Command {
	var force bool
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <branch>",
		Short: "Delete a branch (not main, not the caller's current branch)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if force && !yes {
				ok, err := confirmf("force-delete branch %q, discarding any uncommitted work on it?", args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.DeleteBranch(args[0], s.user, force); err != nil {
				return err
			}
			fmt.Printf("Branch %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete even if there is uncommitted work")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt when forcing")
	return cmd
}

func newBranchViewCmd(s *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "branch-view",
		Short: "Show each branch's HEAD commit (every chain's nodes with --json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			view, err := db.BranchView()
			if err != nil {
				return err
			}
			if s.jsonMode {
				return s.printResult("", view, nil)
			}
			fmt.Println(cliview.RenderBranchView(view))
			return nil
		},
	}
}

func newUserCmd(s *rootState) *cobra.Command {
	var create bool
	var password string
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show the caller and list registered users, or register a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := s.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			if create {
				if err := db.CreateUser(s.user, password); err != nil {
					return err
				}
				fmt.Printf("User %s registered\n", s.user)
				return nil
			}
			current, all, err := db.Users(s.user)
			if err != nil {
				return err
			}
			if s.jsonMode {
				return s.printResult("", struct {
					Current string   `json:"current"`
					All     []string `json:"all"`
				}{current, all}, nil)
			}
			fmt.Println("Current user:", current)
			for _, u := range all {
				fmt.Println(u)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "register the acting user as a new credential row")
	cmd.Flags().StringVar(&password, "password", "", "password to store alongside --create (metadata only; authentication is out of scope)")
	return cmd
}
