package database

import "github.com/gql-db/gqldb/internal/diff"

// Actor is the in-memory state the facade tracks per connected user: which
// branch they are on and the diffs they have accumulated but not yet
// committed. Diffs are private to the actor until a commit flushes them;
// a fresh actor starts on the main branch with nothing pending.
type Actor struct {
	UserID     string
	BranchName string
	Diffs      []diff.Diff
}

func newActor(userID string) *Actor {
	return &Actor{UserID: userID, BranchName: MainBranchName}
}

// HasUncommittedWork reports whether the actor has pending diffs.
func (a *Actor) HasUncommittedWork() bool {
	return len(a.Diffs) > 0
}
