// Package dblock provides the advisory cross-process lock that enforces
// the single-writer model: one process may hold a database open for
// writing at a time. It layers a short retry-with-backoff window on top
// of a plain flock, the same way a storage backend retries transient
// connection errors, so a lock that is about to be released by another
// process doesn't fail the caller outright.
package dblock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/gql-db/gqldb/internal/dberrors"
)

const lockFileName = ".gqldb.lock"

// Lock is a held advisory lock on a database directory. The zero value is
// not usable; construct one with Acquire.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file used to guard dir.
func Path(dir string) string {
	return dir + string([]byte{'/'}) + lockFileName
}

// Acquire takes the exclusive lock on dir, retrying with exponential
// backoff until timeout elapses. A timeout of zero tries exactly once.
func Acquire(dir string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(Path(dir))

	if timeout <= 0 {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, dberrors.WrapIO(err, "acquiring database lock")
		}
		if !ok {
			return nil, dberrors.IOf("database %q is locked by another process", dir)
		}
		return &Lock{fl: fl}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = timeout / 10
	bo.MaxElapsedTime = 0 // ctx's deadline bounds the wait

	locked := false
	err := backoff.Retry(func() error {
		ok, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(dberrors.WrapIO(err, "acquiring database lock"))
		}
		if !ok {
			return dberrors.IOf("database %q is locked by another process", dir)
		}
		locked = true
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, dberrors.IOf("database %q is locked by another process", dir)
		}
		return nil, err
	}
	if !locked {
		return nil, dberrors.IOf("database %q is locked by another process", dir)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call once; the Lock is not reusable
// afterward.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return dberrors.WrapIO(err, "releasing database lock")
	}
	return nil
}
