// Package sqlmirror projects the live rows of a database's current
// working directory into an in-memory SQLite database for the
// `schema_table` command's ad-hoc SQL browsing. It is a read-only,
// rebuilt-on-demand view: never authoritative, and it knows nothing
// about the page format, diffs, or branch history. Built on
// github.com/ncruces/go-sqlite3, a pure-Go wazero-hosted driver,
// repurposed here as a SQL-inspection sink rather than a system of
// record.
package sqlmirror

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

// Build opens a fresh in-memory SQLite database and copies every
// live row of each named table (read from dir) into a same-named
// SQLite table with an analogous column affinity. The caller owns the
// returned *sql.DB and must Close it.
func Build(dir string, tableNames []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, dberrors.WrapIO(err, "open in-memory sqlite mirror")
	}
	for _, name := range tableNames {
		if err := mirrorTable(db, dir, name); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Query runs a read-only SQL statement against db and renders the
// result as column names plus string-rendered cell values, mirroring
// the column-names-plus-cells shape of a tabular RPC result without
// depending on that package.
func Query(db *sql.DB, sqlText string) (cols []string, rows [][]string, err error) {
	rs, err := db.Query(sqlText)
	if err != nil {
		return nil, nil, dberrors.WrapFormat(err, "run sql query")
	}
	defer rs.Close()

	cols, err = rs.Columns()
	if err != nil {
		return nil, nil, dberrors.WrapFormat(err, "read sql result columns")
	}
	for rs.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, nil, dberrors.WrapFormat(err, "scan sql row")
		}
		rendered := make([]string, len(cols))
		for i, v := range raw {
			rendered[i] = renderCell(v)
		}
		rows = append(rows, rendered)
	}
	return cols, rows, rs.Err()
}

func renderCell(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func mirrorTable(db *sql.DB, dir, name string) error {
	tbl, err := table.Open(name, dir)
	if err != nil {
		return err
	}
	schema := tbl.Schema()

	var createCols []string
	for _, col := range schema {
		createCols = append(createCols, quoteIdent(col.Name)+" "+sqliteAffinity(col.Type))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(createCols, ", "))
	if _, err := db.Exec(createStmt); err != nil {
		return dberrors.WrapFormat(err, "create sqlite mirror table %q", name)
	}

	placeholders := strings.Repeat("?, ", len(schema))
	placeholders = strings.TrimSuffix(placeholders, ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)

	rows, err := tbl.AllRows()
	if err != nil {
		return err
	}
	for _, ri := range rows {
		args := make([]any, len(ri.Row))
		for i, v := range ri.Row {
			args[i] = sqliteValue(v)
		}
		if _, err := db.Exec(insertStmt, args...); err != nil {
			return dberrors.WrapFormat(err, "mirror row of table %q", name)
		}
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqliteAffinity(t coltype.Type) string {
	switch t.Kind {
	case coltype.KindI32, coltype.KindI64, coltype.KindBool:
		return "INTEGER"
	case coltype.KindFloat, coltype.KindDouble:
		return "REAL"
	case coltype.KindTimestamp:
		return "INTEGER"
	case coltype.KindString:
		return "TEXT"
	default:
		return "BLOB"
	}
}

func sqliteValue(v rowcodec.Value) any {
	if v.Null {
		return nil
	}
	switch v.Type.Kind {
	case coltype.KindI32:
		return v.I32()
	case coltype.KindI64:
		return v.I64()
	case coltype.KindFloat:
		return v.Float32()
	case coltype.KindDouble:
		return v.Float64()
	case coltype.KindBool:
		return v.Bool()
	case coltype.KindTimestamp:
		return v.TimestampVal().Sec
	case coltype.KindString:
		return v.Str()
	default:
		return nil
	}
}
