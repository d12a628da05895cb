package database

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/gql-db/gqldb/internal/dberrors"
)

// Watcher observes a branch's working directory for changes made outside
// this process — a crash-recovery or external-tamper diagnostic for
// `status --watch`, not something the engine otherwise relies on for
// correctness.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
}

// WatchWorkingDirectory watches userID's current branch directory and
// invokes onChange (with the changed file's path) for every write,
// create, remove, or rename event, until the returned Watcher is closed.
func (d *Database) WatchWorkingDirectory(userID string, onChange func(path string)) (*Watcher, error) {
	dir := d.GetCurrentWorkingBranchPath(userID)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, dberrors.WrapIO(err, "start working-directory watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, dberrors.WrapIO(err, "watch working directory %q", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{fsw: fsw, cancel: cancel}

	go func() {
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					onChange(event.Name)
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return w, nil
}

// Close stops the watcher's background goroutine and releases the
// underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fsw.Close()
}
