// Package cliview renders the human-facing output for the log, info,
// status, and branch_view commands: colorized text built with
// lipgloss, markdown commit bodies rendered through glamour sized to
// the real terminal width via golang.org/x/term, and a termenv
// color-profile probe so output degrades cleanly when stdout isn't a
// color terminal.
package cliview

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/gql-db/gqldb/internal/branchgraph"
	"github.com/gql-db/gqldb/internal/commitstore"
)

const defaultWordWrap = 100

// infoWordWrap returns stdout's terminal width for glamour's word-wrap,
// falling back to defaultWordWrap when stdout isn't a terminal or its
// size can't be read (piped output, redirected to a file, CI).
func infoWordWrap() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWordWrap
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWordWrap
	}
	return w
}

var (
	hashStyle   = lipgloss.NewStyle().Bold(true)
	headStyle   = lipgloss.NewStyle().Bold(true)
	muteStyle   = lipgloss.NewStyle().Faint(true)
	branchStyle = lipgloss.NewStyle().Bold(true)
)

func init() {
	profile := termenv.NewOutput(os.Stdout).Profile
	if profile == termenv.Ascii {
		hashStyle = lipgloss.NewStyle()
		headStyle = lipgloss.NewStyle()
		muteStyle = lipgloss.NewStyle()
		branchStyle = lipgloss.NewStyle()
	}
}

// RenderLog renders a branch's commit history in the order given (tip
// first, as Database.Log returns it) as a lipgloss tree rooted at the
// branch name.
func RenderLog(branch string, commits []commitstore.Commit) string {
	if len(commits) == 0 {
		return muteStyle.Render("No Commits!")
	}
	t := tree.New().Root(branchStyle.Render(branch))
	for _, c := range commits {
		t.Child(fmt.Sprintf("%s  %s\n%s",
			hashStyle.Render(c.Hash),
			c.Timestamp.Format("2006-01-02 15:04:05"),
			muteStyle.Render(c.Message)))
	}
	return t.String()
}

// RenderInfo renders one commit's full detail, including its command
// string and diff count, as a small markdown document through glamour
// so multi-line commit messages keep their structure.
func RenderInfo(c commitstore.Commit) string {
	md := fmt.Sprintf("# Commit %s\n\n**Timestamp:** %s\n\n**Command:** `%s`\n\n**Diffs:** %d\n\n%s\n",
		c.Hash, c.Timestamp.Format("2006-01-02 15:04:05"), c.Command, len(c.Diffs), c.Message)
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(infoWordWrap()))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// RenderStatus renders how many uncommitted diffs an actor has
// accumulated on their current branch.
func RenderStatus(branch string, pending int) string {
	if pending == 0 {
		return muteStyle.Render(fmt.Sprintf("%s: no uncommitted changes", branch))
	}
	return fmt.Sprintf("%s: %s", branchStyle.Render(branch),
		headStyle.Render(fmt.Sprintf("%d uncommitted change(s)", pending)))
}

// RenderBranchView renders one line per branch: its name, a " *" mark
// when its HEAD node is flagged as head, and that node's commit hash.
// Ancestor nodes in view.Nodes are not drawn.
func RenderBranchView(view *branchgraph.BranchView) string {
	if view == nil || len(view.Heads) == 0 {
		return muteStyle.Render("No branches.")
	}
	var b strings.Builder
	for branch, loc := range view.Heads {
		node, ok := view.Nodes[loc]
		if !ok {
			continue
		}
		headMark := ""
		if node.IsHead {
			headMark = " *"
		}
		fmt.Fprintf(&b, "%s%s -> %s\n", branchStyle.Render(branch), headMark, hashStyle.Render(node.Hash))
	}
	return strings.TrimRight(b.String(), "\n")
}
