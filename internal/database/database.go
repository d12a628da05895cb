// Package database implements the process-wide facade: it owns the
// databases base directory, the current database's branch graph,
// commit store, and user-credentials table, and serializes every
// mutating operation the way an embedded engine instance serializes
// access from a single owning process.
package database

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gql-db/gqldb/internal/branchgraph"
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/commitstore"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/dblock"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

// MainBranchName is the branch every new database starts on.
const MainBranchName = "main"

const (
	credsTableName  = "user_credentials"
	usernameColSize = 32
	passwordColSize = 225
)

// Database is the open handle to one on-disk database: its branch graph,
// commit store, and user-credentials table, plus every connected actor's
// in-memory state. All mutating methods are serialized by mu: one
// goroutine mutates the engine at a time.
type Database struct {
	mu sync.Mutex

	basePath string
	name     string
	path     string

	graph   *branchgraph.Graph
	commits *commitstore.Store
	creds   *table.Table
	lock    *dblock.Lock

	actors map[string]*Actor
}

func credsSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "username", Type: coltype.String(usernameColSize)},
		{Name: "password", Type: coltype.String(passwordColSize)},
	}
}

func databasePath(basePath, name string) string {
	return filepath.Join(basePath, name)
}

func branchDirName(dbName, branch string) string {
	return dbName + "-" + branch
}

// BranchPath returns the working directory for branch within this
// database: <db>/<db>-<branch>.
func (d *Database) BranchPath(branch string) string {
	return filepath.Join(d.path, branchDirName(d.name, branch))
}

// Name returns the database's name.
func (d *Database) Name() string { return d.name }

// Path returns the database's root directory.
func (d *Database) Path() string { return d.path }

// CreateDatabase makes a brand new database named name rooted under
// basePath, with a single main branch and an empty working directory,
// and opens it under an advisory lock.
func CreateDatabase(basePath, name string, lockTimeout time.Duration) (*Database, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, dberrors.WrapIO(err, "create databases base directory")
	}
	path := databasePath(basePath, name)
	if _, err := os.Stat(path); err == nil {
		return nil, dberrors.IOf("database %q already exists", name)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, dberrors.WrapIO(err, "create database directory")
	}

	lock, err := dblock.Acquire(path, lockTimeout)
	if err != nil {
		return nil, err
	}

	graph, err := branchgraph.Create(path, MainBranchName)
	if err != nil {
		lock.Release()
		return nil, err
	}
	commits, err := commitstore.Create(path)
	if err != nil {
		lock.Release()
		return nil, err
	}
	creds, err := table.Create(credsTableName, credsSchema(), path)
	if err != nil {
		lock.Release()
		return nil, err
	}
	mainDir := filepath.Join(path, branchDirName(name, MainBranchName))
	if err := os.Mkdir(mainDir, 0o755); err != nil {
		lock.Release()
		return nil, dberrors.WrapIO(err, "create main branch directory")
	}

	return &Database{
		basePath: basePath,
		name:     name,
		path:     path,
		graph:    graph,
		commits:  commits,
		creds:    creds,
		lock:     lock,
		actors:   map[string]*Actor{},
	}, nil
}

// LoadDatabase opens an existing database under an advisory lock.
func LoadDatabase(basePath, name string, lockTimeout time.Duration) (*Database, error) {
	path := databasePath(basePath, name)
	if _, err := os.Stat(path); err != nil {
		return nil, dberrors.IOf("database %q does not exist", name)
	}

	lock, err := dblock.Acquire(path, lockTimeout)
	if err != nil {
		return nil, err
	}
	graph, err := branchgraph.Open(path)
	if err != nil {
		lock.Release()
		return nil, err
	}
	commits, err := commitstore.Open(path)
	if err != nil {
		lock.Release()
		return nil, err
	}
	creds, err := table.Open(credsTableName, path)
	if err != nil {
		lock.Release()
		return nil, err
	}

	return &Database{
		basePath: basePath,
		name:     name,
		path:     path,
		graph:    graph,
		commits:  commits,
		creds:    creds,
		lock:     lock,
		actors:   map[string]*Actor{},
	}, nil
}

// DeleteDatabase removes the database directory entirely. db must not be
// used again afterward.
func DeleteDatabase(db *Database) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := os.RemoveAll(db.path); err != nil {
		return dberrors.WrapIO(err, "delete database directory")
	}
	return db.lock.Release()
}

// Close releases the database's advisory lock. The Database must not be
// used again afterward.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lock.Release()
}

// actor returns (creating if necessary) the in-memory state for userID.
// Callers must hold d.mu.
func (d *Database) actor(userID string) *Actor {
	a, ok := d.actors[userID]
	if !ok {
		a = newActor(userID)
		d.actors[userID] = a
	}
	return a
}

// GetCurrentWorkingBranchPath returns the working directory of the
// branch userID currently has checked out.
func (d *Database) GetCurrentWorkingBranchPath(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BranchPath(d.actor(userID).BranchName)
}

// GetTablePath returns the path to table name on userID's current
// branch, independent of whether it exists.
func (d *Database) GetTablePath(tableName, userID string) string {
	return table.Path(d.GetCurrentWorkingBranchPath(userID), tableName)
}

// CreateUser inserts a new user-credential row. Authentication itself
// is out of scope; this only records the metadata row.
func (d *Database) CreateUser(username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	exists, err := d.userExists(username)
	if err != nil {
		return err
	}
	if exists {
		return dberrors.ConstraintF("user %q already exists", username)
	}
	_, err = d.creds.InsertRows([]rowcodec.Row{{
		rowcodec.NewString(username, usernameColSize),
		rowcodec.NewString(password, passwordColSize),
	}})
	return err
}

func (d *Database) userExists(username string) (bool, error) {
	found := false
	err := d.creds.Iterate(func(ri rowcodec.RowInfo) error {
		if ri.Row[0].Str() == username {
			found = true
		}
		return nil
	})
	return found, err
}
