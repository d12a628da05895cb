// Package commitstore implements the commit log: a headers table mapping
// commit hash to the delta file page where the full commit record
// starts, and a page-packed delta file holding the commits themselves
// (message, command, timestamp, and the diff list). Records are variable
// length and packed back to back across page boundaries via a sequential
// cursor, the way the table store's own rows never are.
package commitstore

import (
	"crypto/rand"
	"path/filepath"
	"time"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/pageio"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

const (
	headersTableName = "commit_headers"
	deltaFileName    = "deltas"
	deltaFileExt     = ".bin"
	hashLen          = 30
	maxHashRetries   = 8
)

// Commit is one immutable point in the version history: the diffs it
// introduced, plus the message/command/time it was recorded under.
type Commit struct {
	Hash      string
	Timestamp time.Time
	Message   string
	Command   string
	Diffs     []diff.Diff
}

// Store owns the commit headers table and the delta file backing it.
type Store struct {
	headers   *table.Table
	deltaPath string
}

func headerSchema() rowcodec.Schema {
	return rowcodec.Schema{
		{Name: "commit_hash", Type: coltype.String(hashLen)},
		{Name: "page_num", Type: coltype.I32()},
	}
}

// Create initializes a brand new, empty commit store rooted at dir.
func Create(dir string) (*Store, error) {
	headers, err := table.Create(headersTableName, headerSchema(), dir)
	if err != nil {
		return nil, err
	}
	deltaPath := filepath.Join(dir, deltaFileName+deltaFileExt)
	if err := pageio.CreateFile(deltaPath); err != nil {
		return nil, err
	}
	return &Store{headers: headers, deltaPath: deltaPath}, nil
}

// Open loads an existing commit store rooted at dir.
func Open(dir string) (*Store, error) {
	headers, err := table.Open(headersTableName, dir)
	if err != nil {
		return nil, err
	}
	return &Store{headers: headers, deltaPath: filepath.Join(dir, deltaFileName+deltaFileExt)}, nil
}

func randomHash() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, hashLen)
	if _, err := rand.Read(buf); err != nil {
		return "", dberrors.WrapIO(err, "generate commit hash")
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func (s *Store) findHeaderPage(hash string) (uint32, bool, error) {
	var found uint32
	var ok bool
	err := s.headers.Iterate(func(info rowcodec.RowInfo) error {
		if info.Row[0].Str() == hash {
			found = uint32(info.Row[1].I32())
			ok = true
		}
		return nil
	})
	return found, ok, err
}

// CreateCommit allocates a fresh hash (retrying on the astronomically
// unlikely collision), appends the commit record to the delta file, and
// records it in the headers table.
func (s *Store) CreateCommit(message, command string, diffs []diff.Diff) (Commit, error) {
	var hash string
	for attempt := 0; ; attempt++ {
		h, err := randomHash()
		if err != nil {
			return Commit{}, err
		}
		if _, exists, err := s.findHeaderPage(h); err != nil {
			return Commit{}, err
		} else if !exists {
			hash = h
			break
		}
		if attempt >= maxHashRetries {
			return Commit{}, dberrors.HistoryF("could not allocate a unique commit hash after %d attempts", maxHashRetries+1)
		}
	}
	c := Commit{Hash: hash, Timestamp: time.Now().UTC(), Message: message, Command: command, Diffs: diffs}
	pagenum, err := s.appendCommit(c)
	if err != nil {
		return Commit{}, err
	}
	if _, err := s.headers.InsertRows([]rowcodec.Row{
		{rowcodec.NewString(hash, hashLen), rowcodec.NewI32(int32(pagenum))},
	}); err != nil {
		return Commit{}, err
	}
	return c, nil
}

// FetchCommit looks up a commit by its hash.
func (s *Store) FetchCommit(hash string) (Commit, error) {
	pagenum, ok, err := s.findHeaderPage(hash)
	if err != nil {
		return Commit{}, err
	}
	if !ok {
		return Commit{}, dberrors.HistoryF("commit %q not found", hash)
	}
	return s.readCommit(pagenum)
}

// Squash folds the diffs of a contiguous run of commits (oldest first)
// into one new commit recording the combined change, and stores it. The
// original commits remain in the log; callers (the branch graph) decide
// whether to keep pointing at them or retarget history onto the squash.
func (s *Store) Squash(commits []Commit) (Commit, error) {
	if len(commits) == 0 {
		return Commit{}, dberrors.HistoryF("squash requires at least one commit")
	}
	if len(commits) == 1 {
		return commits[0], nil
	}
	var all []diff.Diff
	for _, c := range commits {
		all = append(all, c.Diffs...)
	}
	folded := diff.Squash(all)
	message := "Combined " + itoa(len(commits)) + " commits"
	command := "squash " + commits[0].Hash + " " + commits[len(commits)-1].Hash
	return s.CreateCommit(message, command, folded)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// appendCommit finds the first free page in the delta file (a page whose
// leading liveness byte is 0) and writes the commit record there,
// returning the page it starts on.
func (s *Store) appendCommit(c Commit) (uint32, error) {
	n, err := pageio.NumPages(s.deltaPath)
	if err != nil {
		return 0, err
	}
	var pagenum uint32
	for pagenum = 0; pagenum < n; pagenum++ {
		p, err := pageio.ReadPage(pagenum, s.deltaPath)
		if err != nil {
			return 0, err
		}
		if p[0] == 0 {
			break
		}
	}
	cur, err := newWriteCursor(s.deltaPath, pagenum)
	if err != nil {
		return 0, err
	}
	if err := cur.writeUint8(1); err != nil {
		return 0, err
	}
	if err := cur.writeDynString(c.Hash); err != nil {
		return 0, err
	}
	if err := cur.writeDynString(c.Timestamp.Format(time.RFC3339Nano)); err != nil {
		return 0, err
	}
	if err := cur.writeDynString(c.Message); err != nil {
		return 0, err
	}
	if err := cur.writeDynString(c.Command); err != nil {
		return 0, err
	}
	if err := cur.writeUint32(uint32(len(c.Diffs))); err != nil {
		return 0, err
	}
	for _, d := range c.Diffs {
		if err := writeDiff(cur, d); err != nil {
			return 0, err
		}
	}
	if err := cur.flush(); err != nil {
		return 0, err
	}
	return pagenum, nil
}

func (s *Store) readCommit(pagenum uint32) (Commit, error) {
	cur, err := newReadCursor(s.deltaPath, pagenum)
	if err != nil {
		return Commit{}, err
	}
	live, err := cur.readUint8()
	if err != nil {
		return Commit{}, err
	}
	if live != 1 {
		return Commit{}, dberrors.FormatF("commit record at page %d is not live", pagenum)
	}
	hash, err := cur.readDynString()
	if err != nil {
		return Commit{}, err
	}
	tsStr, err := cur.readDynString()
	if err != nil {
		return Commit{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return Commit{}, dberrors.WrapFormat(err, "parse commit timestamp")
	}
	message, err := cur.readDynString()
	if err != nil {
		return Commit{}, err
	}
	command, err := cur.readDynString()
	if err != nil {
		return Commit{}, err
	}
	numDiffs, err := cur.readUint32()
	if err != nil {
		return Commit{}, err
	}
	diffs := make([]diff.Diff, 0, numDiffs)
	for i := uint32(0); i < numDiffs; i++ {
		d, err := readDiff(cur)
		if err != nil {
			return Commit{}, err
		}
		diffs = append(diffs, d)
	}
	return Commit{Hash: hash, Timestamp: ts, Message: message, Command: command, Diffs: diffs}, nil
}
