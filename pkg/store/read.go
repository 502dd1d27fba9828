package store

import (
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// Condition matches rows whose Column equals Value.
type Condition struct {
	Column string
	Value  string
}

// Query selects rows from a table. Empty Columns selects every column;
// all Where conditions must hold for a row to be returned.
type Query struct {
	Columns []string
	Where   []Condition
}

// Tables returns the paths of every table in the store, in key order.
func (t *Tx) Tables() ([]string, error) {
	var paths []string
	var walk func(b *bolt.Bucket, prefix []string) error
	walk = func(b *bolt.Bucket, prefix []string) error {
		if b.Get(schemaKey) != nil {
			paths = append(paths, JoinPath(prefix...))
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if v != nil || isReserved(k) {
				return nil
			}
			child := b.Bucket(k)
			next := append(append([]string(nil), prefix...), string(k))
			return walk(child, next)
		})
	}

	err := t.tx.ForEach(func(name []byte, b *bolt.Bucket) error {
		if isReserved(name) {
			return nil
		}
		return walk(b, []string{string(name)})
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to list tables")
	}
	return paths, nil
}

// Table returns the description of the table at path.
func (t *Tx) Table(path string) (*TableInfo, error) {
	_, schema, err := t.table(path)
	if err != nil {
		return nil, err
	}
	segments, _ := SplitPath(path)
	return &TableInfo{
		Path:     JoinPath(segments...),
		Columns:  append([]ColumnInfo(nil), schema.Columns...),
		Rows:     schema.Rows,
		Blocks:   schema.Blocks,
		Created:  schema.Created,
		Modified: schema.Modified,
	}, nil
}

// ReadColumn returns every value of one column in append order.
func (t *Tx) ReadColumn(path, column string) ([]string, error) {
	b, schema, err := t.table(path)
	if err != nil {
		return nil, err
	}
	if !schema.has(column) {
		return nil, errors.Wrap(ErrNotFound, errors.ErrorTypeNotFound, "column not found").
			WithDetail("path", path).WithDetail("column", column)
	}
	return t.readColumn(b, schema, path, column)
}

// Select reads the rows of the table at path that match q.
func (t *Tx) Select(path string, q Query) (*columnar.Frame, error) {
	b, schema, err := t.table(path)
	if err != nil {
		return nil, err
	}

	names := q.Columns
	if len(names) == 0 {
		names = schema.names()
	}
	for _, name := range names {
		if !schema.has(name) {
			return nil, errors.Wrap(ErrNotFound, errors.ErrorTypeNotFound, "column not found").
				WithDetail("path", path).WithDetail("column", name)
		}
	}
	for _, cond := range q.Where {
		if !schema.has(cond.Column) {
			return nil, errors.Wrap(ErrNotFound, errors.ErrorTypeNotFound, "filter column not found").
				WithDetail("path", path).WithDetail("column", cond.Column)
		}
	}

	cache := make(map[string][]string)
	load := func(name string) ([]string, error) {
		if vals, ok := cache[name]; ok {
			return vals, nil
		}
		vals, err := t.readColumn(b, schema, path, name)
		if err != nil {
			return nil, err
		}
		cache[name] = vals
		return vals, nil
	}

	var mask []bool
	for _, cond := range q.Where {
		vals, err := load(cond.Column)
		if err != nil {
			return nil, err
		}
		if mask == nil {
			mask = make([]bool, len(vals))
			for i := range mask {
				mask[i] = true
			}
		}
		for i, v := range vals {
			mask[i] = mask[i] && v == cond.Value
		}
	}

	columns := make([][]string, len(names))
	for i, name := range names {
		vals, err := load(name)
		if err != nil {
			return nil, err
		}
		columns[i] = vals
	}
	f, err := columnar.FromColumns(names, columns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt table").WithDetail("path", path)
	}
	if mask != nil {
		f = f.Filter(mask)
	}
	return f, nil
}

func (t *Tx) table(path string) (*bolt.Bucket, *tableSchema, error) {
	b, err := t.node(path)
	if err != nil {
		return nil, nil, err
	}
	schema, err := readSchema(b)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read table schema").WithDetail("path", path)
	}
	if schema == nil {
		return nil, nil, errors.Wrap(ErrNotTable, errors.ErrorTypeNotFound, "not a table").WithDetail("path", path)
	}
	return b, schema, nil
}

func (t *Tx) readColumn(b *bolt.Bucket, schema *tableSchema, path, column string) ([]string, error) {
	out := make([]string, 0, schema.Rows)
	cols := b.Bucket(colsBucket)
	if cols == nil {
		return out, nil
	}
	cb := cols.Bucket([]byte(column))
	if cb == nil {
		return out, nil
	}
	err := cb.ForEach(func(k, v []byte) error {
		vals, err := columnar.DecodeBlock(t.s.codecs, v)
		if err != nil {
			return err
		}
		out = append(out, vals...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode column").
			WithDetail("path", path).WithDetail("column", column)
	}
	if int64(len(out)) != schema.Rows {
		return nil, errors.Newf(errors.ErrorTypeData, "column %q holds %d rows, table records %d", column, len(out), schema.Rows).
			WithDetail("path", path)
	}
	return out, nil
}

func (s *tableSchema) has(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Groups returns the immediate child groups and tables of the group at path,
// sorted by name. An empty path lists the top level.
func (t *Tx) Groups(path string) ([]string, error) {
	var names []string
	collect := func(k, v []byte) error {
		if v == nil && !isReserved(k) {
			names = append(names, string(k))
		}
		return nil
	}
	if path == "" || path == Separator {
		err := t.tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			return collect(name, nil)
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to list groups")
		}
		sort.Strings(names)
		return names, nil
	}
	b, err := t.node(path)
	if err != nil {
		return nil, err
	}
	if b.Get(schemaKey) != nil {
		return nil, errors.Wrap(ErrNotGroup, errors.ErrorTypeValidation, "path is a table").WithDetail("path", path)
	}
	if err := b.ForEach(collect); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to list groups").WithDetail("path", path)
	}
	sort.Strings(names)
	return names, nil
}
