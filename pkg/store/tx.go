package store

import (
	"encoding/binary"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// Tx is a transaction on a store.
type Tx struct {
	tx *bolt.Tx
	s  *Store
}

// ColumnInfo describes one stored column.
type ColumnInfo struct {
	Name     string `json:"name"`
	Itemsize int    `json:"itemsize"`
}

// TableInfo describes a table.
type TableInfo struct {
	Path     string       `json:"path"`
	Columns  []ColumnInfo `json:"columns"`
	Rows     int64        `json:"rows"`
	Blocks   int64        `json:"blocks"`
	Created  time.Time    `json:"created"`
	Modified time.Time    `json:"modified"`
}

// ColumnNames returns the table's column names in storage order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AppendOptions tunes a single append.
type AppendOptions struct {
	// MinItemsize gives minimum column widths in bytes.
	MinItemsize columnar.ItemsizeHints
}

// AppendResult reports what an append did.
type AppendResult struct {
	// Path is the canonical table path, without a leading separator.
	Path    string
	Rows    int
	Bytes   int
	Created bool
	// Widened lists columns whose stored width had to grow.
	Widened []string
}

// Append adds the frame's rows to the table at path, creating the table and
// any missing groups on first use. Existing tables are only ever extended;
// the frame's columns must match the table's columns in name and order.
func (t *Tx) Append(path string, f *columnar.Frame, opts AppendOptions) (AppendResult, error) {
	res := AppendResult{Path: path}
	clean, err := CleanPath(path)
	if err != nil {
		return res, err
	}
	res.Path = clean
	if f.NumColumns() == 0 {
		return res, errors.New(errors.ErrorTypeValidation, "frame has no columns").WithDetail("path", path)
	}
	if f.NumRows() == 0 {
		return res, nil
	}
	if err := validateColumnNames(f.Names()); err != nil {
		return res, err
	}

	b, err := t.createNode(path)
	if err != nil {
		return res, err
	}

	schema, err := readSchema(b)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read table schema").WithDetail("path", path)
	}
	now := time.Now().UTC()
	if schema == nil {
		if hasChildGroups(b) {
			return res, errors.Wrap(ErrNotTable, errors.ErrorTypeStorage, "cannot create table over a group").WithDetail("path", path)
		}
		res.Created = true
		schema = &tableSchema{Version: FormatVersion, Created: now}
		for _, name := range f.Names() {
			schema.Columns = append(schema.Columns, ColumnInfo{Name: name})
		}
	} else if err := schema.compatible(f.Names()); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeStorage, "cannot append to table").
			WithDetail("path", path).
			WithDetail("table_columns", schema.names()).
			WithDetail("frame_columns", f.Names())
	}

	sizes := f.ItemSizes(opts.MinItemsize)
	for i := range schema.Columns {
		col := &schema.Columns[i]
		if sizes[i] > col.Itemsize {
			if !res.Created {
				res.Widened = append(res.Widened, col.Name)
				t.s.logger.Debug("widening column",
					zap.String("table", path),
					zap.String("column", col.Name),
					zap.Int("from", col.Itemsize),
					zap.Int("to", sizes[i]))
			}
			col.Itemsize = sizes[i]
		}
	}

	cols, err := b.CreateBucketIfNotExists(colsBucket)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create column index").WithDetail("path", path)
	}
	key := blockKey(uint64(schema.Blocks))
	for i, col := range schema.Columns {
		cb, err := cols.CreateBucketIfNotExists([]byte(col.Name))
		if err != nil {
			return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create column").
				WithDetail("path", path).WithDetail("column", col.Name)
		}
		block, err := columnar.EncodeBlock(t.s.comp, f.Column(i), col.Itemsize)
		if err != nil {
			return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to encode column block").
				WithDetail("path", path).WithDetail("column", col.Name)
		}
		if err := cb.Put(key, block); err != nil {
			return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to write column block").
				WithDetail("path", path).WithDetail("column", col.Name)
		}
		res.Bytes += len(block)
	}

	schema.Rows += int64(f.NumRows())
	schema.Blocks++
	schema.Modified = now
	if err := writeSchema(b, schema); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeStorage, "failed to write table schema").WithDetail("path", path)
	}
	res.Rows = f.NumRows()
	return res, nil
}

// SetAttr stores value, JSON encoded, as attribute name on the node at path.
// An existing attribute of the same name is overwritten.
func (t *Tx) SetAttr(path, name string, value interface{}) error {
	if name == "" {
		return errors.New(errors.ErrorTypeValidation, "attribute name is required")
	}
	b, err := t.node(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode attribute").WithDetail("name", name)
	}
	attrs, err := b.CreateBucketIfNotExists(attrsBucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create attribute set").WithDetail("path", path)
	}
	if err := attrs.Put([]byte(name), raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write attribute").
			WithDetail("path", path).WithDetail("name", name)
	}
	return nil
}

// Attr decodes attribute name of the node at path into dst.
func (t *Tx) Attr(path, name string, dst interface{}) error {
	b, err := t.node(path)
	if err != nil {
		return err
	}
	var raw []byte
	if attrs := b.Bucket(attrsBucket); attrs != nil {
		raw = attrs.Get([]byte(name))
	}
	if raw == nil {
		return errors.Wrap(ErrNotFound, errors.ErrorTypeNotFound, "attribute not found").
			WithDetail("path", path).WithDetail("name", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode attribute").WithDetail("name", name)
	}
	return nil
}

// Attrs returns every attribute of the node at path as raw JSON.
func (t *Tx) Attrs(path string) (map[string][]byte, error) {
	b, err := t.node(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	attrs := b.Bucket(attrsBucket)
	if attrs == nil {
		return out, nil
	}
	err = attrs.ForEach(func(k, v []byte) error {
		out[string(k)] = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Has reports whether a group or table exists at path.
func (t *Tx) Has(path string) (bool, error) {
	_, err := t.node(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// node resolves an existing bucket for path.
func (t *Tx) node(path string) (*bolt.Bucket, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	b := t.tx.Bucket([]byte(segments[0]))
	for _, seg := range segments[1:] {
		if b == nil {
			break
		}
		b = b.Bucket([]byte(seg))
	}
	if b == nil {
		return nil, errors.Wrap(ErrNotFound, errors.ErrorTypeNotFound, "path not found").WithDetail("path", path)
	}
	return b, nil
}

// createNode resolves path, creating missing groups along the way.
func (t *Tx) createNode(path string) (*bolt.Bucket, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	b, err := t.tx.CreateBucketIfNotExists([]byte(segments[0]))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create group").WithDetail("path", path)
	}
	for i, seg := range segments[1:] {
		if b.Get(schemaKey) != nil {
			return nil, errors.Wrap(ErrNotGroup, errors.ErrorTypeStorage, "cannot nest under a table").
				WithDetail("path", path).
				WithDetail("table", JoinPath(segments[:i+1]...))
		}
		if b, err = b.CreateBucketIfNotExists([]byte(seg)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create group").WithDetail("path", path)
		}
	}
	return b, nil
}

func validateColumnNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return errors.New(errors.ErrorTypeValidation, "column name is empty")
		}
		if _, dup := seen[n]; dup {
			return errors.New(errors.ErrorTypeValidation, "duplicate column name").WithDetail("column", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// hasChildGroups reports whether b holds any non-reserved nested bucket.
func hasChildGroups(b *bolt.Bucket) bool {
	found := false
	_ = b.ForEach(func(k, v []byte) error {
		if v == nil && !isReserved(k) {
			found = true
		}
		return nil
	})
	return found
}

func isReserved(name []byte) bool {
	return len(name) > 0 && name[0] == 0
}

func blockKey(n uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], n)
	return k[:]
}

type tableSchema struct {
	Version  int          `json:"version"`
	Columns  []ColumnInfo `json:"columns"`
	Rows     int64        `json:"rows"`
	Blocks   int64        `json:"blocks"`
	Created  time.Time    `json:"created"`
	Modified time.Time    `json:"modified"`
}

func (s *tableSchema) names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s *tableSchema) compatible(names []string) error {
	if len(names) != len(s.Columns) {
		return ErrSchemaMismatch
	}
	for i, c := range s.Columns {
		if c.Name != names[i] {
			return ErrSchemaMismatch
		}
	}
	return nil
}

func readSchema(b *bolt.Bucket) (*tableSchema, error) {
	raw := b.Get(schemaKey)
	if raw == nil {
		return nil, nil
	}
	var s tableSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeSchema(b *bolt.Bucket, s *tableSchema) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.Put(schemaKey, raw)
}
