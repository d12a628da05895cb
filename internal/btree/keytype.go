// Package btree implements the on-disk B+-tree secondary index: bulk
// build from a sorted row set, point/range search with duplicate-key
// fan-out, and insert/remove/update/drop against the tree's leaf and
// internal pages. All tree pages live inside the owning table's file;
// the table header maps an index id to the tree's root page number.
package btree

import (
	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/rowcodec"
	"github.com/gql-db/gqldb/internal/table"
)

// IndexKeyType is the ordered tuple of column types composing an index
// key, derived from an index id against a table schema.
type IndexKeyType []coltype.Type

// IndexKeyTypeOf derives the key type for an index id against schema.
func IndexKeyTypeOf(id table.IndexID, schema rowcodec.Schema) IndexKeyType {
	kt := make(IndexKeyType, len(id))
	for i, col := range id {
		kt[i] = schema[col].Type
	}
	return kt
}

// KeyOf projects a row down to its index key given an index id.
func KeyOf(row rowcodec.Row, id table.IndexID) rowcodec.Key {
	key := make(rowcodec.Key, len(id))
	for i, col := range id {
		key[i] = row[col]
	}
	return key
}

// CreateIndexID resolves column names to an index id (ordered column
// positions) against schema. Fails if any column name is unknown.
func CreateIndexID(columns []string, schema rowcodec.Schema) (table.IndexID, error) {
	id := make(table.IndexID, len(columns))
	for i, name := range columns {
		pos := schema.IndexOf(name)
		if pos < 0 {
			return nil, dberrors.SchemaF("no such column %q for index", name)
		}
		id[i] = pos
	}
	return id, nil
}

func keySize(kt IndexKeyType) int {
	return rowcodec.KeyTypeSize([]coltype.Type(kt))
}

func defaultKey(kt IndexKeyType) rowcodec.Key {
	key := make(rowcodec.Key, len(kt))
	for i, t := range kt {
		key[i] = rowcodec.NewNull(coltype.NullableOf(t))
		if !t.Nullable {
			// Non-nullable columns get their type's zero value instead of a
			// null sentinel, since the column itself can't hold null.
			switch t.Kind {
			case coltype.KindI32:
				key[i] = rowcodec.NewI32(0)
			case coltype.KindI64:
				key[i] = rowcodec.NewI64(0)
			case coltype.KindFloat:
				key[i] = rowcodec.NewFloat(0)
			case coltype.KindDouble:
				key[i] = rowcodec.NewDouble(0)
			case coltype.KindBool:
				key[i] = rowcodec.NewBool(false)
			case coltype.KindTimestamp:
				key[i] = rowcodec.NewTimestamp(rowcodec.Timestamp{})
			case coltype.KindString:
				key[i] = rowcodec.NewString("", t.StrLen)
			}
		}
	}
	return key
}
