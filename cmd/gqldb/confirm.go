package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// pickMergeStrategy prompts for a conflict-resolution strategy after a
// default `clean` merge hit n conflicts and the caller never pinned
// --strategy, so the merge can retry instead of just failing.
func pickMergeStrategy(n int) (string, error) {
	strategy := "clean"
	err := huh.NewSelect[string]().
		Title(fmt.Sprintf("%d merge conflict(s) found. Resolve how?", n)).
		Options(
			huh.NewOption("Keep destination's side (ours)", "ours"),
			huh.NewOption("Keep source's side (theirs)", "theirs"),
			huh.NewOption("Abort the merge (clean)", "clean"),
		).
		Value(&strategy).
		Run()
	if err == huh.ErrUserAborted {
		return "clean", nil
	}
	return strategy, err
}

// confirmf shows a huh confirmation prompt before a destructive
// action (drop database, force-delete a branch with uncommitted
// work). Mirrors the confirm-before-submit step a huh form typically
// uses, generalized from "submit this issue?" to any yes/no gate.
func confirmf(format string, args ...any) (bool, error) {
	ok := false
	prompt := fmt.Sprintf(format, args...)
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err == huh.ErrUserAborted {
		return false, nil
	}
	return ok, err
}
