// Package schemafixture loads table schemas from TOML fixture files for
// integration tests, so a schema under test lives as data alongside the
// test rather than as a literal composite built in Go source. Grounded
// on internal/dbconfig's use of a declarative config file for settings,
// generalized to table schemas and decoded with the same BurntSushi/toml
// parser viper layers on top of for config, here used directly since a
// schema fixture isn't config.
package schemafixture

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/gql-db/gqldb/internal/coltype"
	"github.com/gql-db/gqldb/internal/rowcodec"
)

// fixture is the on-disk TOML shape: a table name plus an ordered list
// of columns.
type fixture struct {
	Name    string          `toml:"name"`
	Columns []fixtureColumn `toml:"columns"`
}

type fixtureColumn struct {
	Name     string `toml:"name"`
	Kind     string `toml:"kind"`
	Len      uint16 `toml:"len"`
	Nullable bool   `toml:"nullable"`
}

// Load reads path and decodes it into a table name and schema.
func Load(path string) (name string, schema rowcodec.Schema, err error) {
	var f fixture
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return "", nil, fmt.Errorf("decode schema fixture %q: %w", path, err)
	}
	schema = make(rowcodec.Schema, len(f.Columns))
	for i, c := range f.Columns {
		t, err := columnType(c)
		if err != nil {
			return "", nil, fmt.Errorf("schema fixture %q column %q: %w", path, c.Name, err)
		}
		schema[i] = rowcodec.Column{Name: c.Name, Type: t}
	}
	return f.Name, schema, nil
}

func columnType(c fixtureColumn) (coltype.Type, error) {
	var t coltype.Type
	switch c.Kind {
	case "i32":
		t = coltype.I32()
	case "i64":
		t = coltype.I64()
	case "float":
		t = coltype.Float()
	case "double":
		t = coltype.Double()
	case "bool":
		t = coltype.Bool()
	case "timestamp":
		t = coltype.Timestamp()
	case "string":
		if c.Len == 0 {
			return coltype.Type{}, fmt.Errorf("string column %q needs len > 0", c.Name)
		}
		t = coltype.String(c.Len)
	default:
		return coltype.Type{}, fmt.Errorf("unknown kind %q", c.Kind)
	}
	if c.Nullable {
		t = coltype.NullableOf(t)
	}
	return t, nil
}

// MustLoad is Load, failing the test on any error. Intended for test
// setup only — never called from production code.
func MustLoad(t interface{ Fatalf(string, ...any) }, path string) (string, rowcodec.Schema) {
	name, schema, err := Load(path)
	if err != nil {
		t.Fatalf("schemafixture.Load(%q): %v", path, err)
	}
	return name, schema
}
