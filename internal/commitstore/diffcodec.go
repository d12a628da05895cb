package commitstore

import (
	"github.com/gql-db/gqldb/internal/dberrors"
	"github.com/gql-db/gqldb/internal/diff"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

func writeDiff(cur *cursor, d diff.Diff) error {
	if err := cur.writeUint8(uint8(d.Kind())); err != nil {
		return err
	}
	if err := cur.writeDynString(d.TableName()); err != nil {
		return err
	}
	switch v := d.(type) {
	case diff.InsertDiff:
		return writeRowDiffBody(cur, v.Schema, v.Rows)
	case diff.RemoveDiff:
		return writeRowDiffBody(cur, v.Schema, v.Rows)
	case diff.UpdateDiff:
		if err := cur.writeSchema(v.Schema); err != nil {
			return err
		}
		if err := cur.writeUint32(uint32(len(v.NewRows))); err != nil {
			return err
		}
		for i, newRow := range v.NewRows {
			if err := cur.writeRowInfo(v.Schema, newRow); err != nil {
				return err
			}
			if err := cur.writeRowInfo(v.Schema, v.OldRows[i]); err != nil {
				return err
			}
		}
		return nil
	case diff.TableCreateDiff:
		return cur.writeSchema(v.Schema)
	case diff.TableRemoveDiff:
		return writeRowDiffBody(cur, v.Schema, v.Rows)
	case diff.IndexCreateDiff:
		return writeIndexRefs(cur, v.Schema, v.Indexes)
	case diff.IndexRemoveDiff:
		return writeIndexRefs(cur, v.Schema, v.Indexes)
	}
	return dberrors.FormatF("encode commit: unknown diff kind %v", d.Kind())
}

func writeRowDiffBody(cur *cursor, schema rowcodec.Schema, rows []rowcodec.RowInfo) error {
	if err := cur.writeSchema(schema); err != nil {
		return err
	}
	if err := cur.writeUint32(uint32(len(rows))); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cur.writeRowInfo(schema, r); err != nil {
			return err
		}
	}
	return nil
}

func writeIndexRefs(cur *cursor, schema rowcodec.Schema, refs []diff.IndexRef) error {
	if err := cur.writeSchema(schema); err != nil {
		return err
	}
	if err := cur.writeUint8(uint8(len(refs))); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := cur.writeDynString(ref.Name); err != nil {
			return err
		}
		if err := cur.writeUint8(uint8(len(ref.Columns))); err != nil {
			return err
		}
		for _, col := range ref.Columns {
			if err := cur.writeDynString(col); err != nil {
				return err
			}
		}
	}
	return nil
}

func readDiff(cur *cursor) (diff.Diff, error) {
	kindByte, err := cur.readUint8()
	if err != nil {
		return nil, err
	}
	kind := diff.Kind(kindByte)
	table, err := cur.readDynString()
	if err != nil {
		return nil, err
	}
	switch kind {
	case diff.KindInsert:
		schema, rows, err := readRowDiffBody(cur)
		if err != nil {
			return nil, err
		}
		return diff.InsertDiff{Table: table, Schema: schema, Rows: rows}, nil
	case diff.KindRemove:
		schema, rows, err := readRowDiffBody(cur)
		if err != nil {
			return nil, err
		}
		return diff.RemoveDiff{Table: table, Schema: schema, Rows: rows}, nil
	case diff.KindTableRemove:
		schema, rows, err := readRowDiffBody(cur)
		if err != nil {
			return nil, err
		}
		return diff.TableRemoveDiff{Table: table, Schema: schema, Rows: rows}, nil
	case diff.KindUpdate:
		schema, err := cur.readSchema()
		if err != nil {
			return nil, err
		}
		n, err := cur.readUint32()
		if err != nil {
			return nil, err
		}
		news := make([]rowcodec.RowInfo, n)
		olds := make([]rowcodec.RowInfo, n)
		for i := uint32(0); i < n; i++ {
			news[i], err = cur.readRowInfo(schema)
			if err != nil {
				return nil, err
			}
			olds[i], err = cur.readRowInfo(schema)
			if err != nil {
				return nil, err
			}
		}
		return diff.UpdateDiff{Table: table, Schema: schema, NewRows: news, OldRows: olds}, nil
	case diff.KindTableCreate:
		schema, err := cur.readSchema()
		if err != nil {
			return nil, err
		}
		return diff.TableCreateDiff{Table: table, Schema: schema}, nil
	case diff.KindIndexCreate:
		schema, refs, err := readIndexRefs(cur)
		if err != nil {
			return nil, err
		}
		return diff.IndexCreateDiff{Table: table, Schema: schema, Indexes: refs}, nil
	case diff.KindIndexRemove:
		schema, refs, err := readIndexRefs(cur)
		if err != nil {
			return nil, err
		}
		return diff.IndexRemoveDiff{Table: table, Schema: schema, Indexes: refs}, nil
	}
	return nil, dberrors.FormatF("decode commit: unknown diff kind %d", kindByte)
}

func readRowDiffBody(cur *cursor) (rowcodec.Schema, []rowcodec.RowInfo, error) {
	schema, err := cur.readSchema()
	if err != nil {
		return nil, nil, err
	}
	n, err := cur.readUint32()
	if err != nil {
		return nil, nil, err
	}
	rows := make([]rowcodec.RowInfo, n)
	for i := uint32(0); i < n; i++ {
		rows[i], err = cur.readRowInfo(schema)
		if err != nil {
			return nil, nil, err
		}
	}
	return schema, rows, nil
}

func readIndexRefs(cur *cursor) (rowcodec.Schema, []diff.IndexRef, error) {
	schema, err := cur.readSchema()
	if err != nil {
		return nil, nil, err
	}
	n, err := cur.readUint8()
	if err != nil {
		return nil, nil, err
	}
	refs := make([]diff.IndexRef, n)
	for i := 0; i < int(n); i++ {
		name, err := cur.readDynString()
		if err != nil {
			return nil, nil, err
		}
		numCols, err := cur.readUint8()
		if err != nil {
			return nil, nil, err
		}
		cols := make([]string, numCols)
		for j := range cols {
			cols[j], err = cur.readDynString()
			if err != nil {
				return nil, nil, err
			}
		}
		refs[i] = diff.IndexRef{Name: name, Columns: cols}
	}
	return schema, refs, nil
}
