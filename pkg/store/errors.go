package store

import stderrors "errors"

var (
	// ErrNotFound is returned when a path, column or attribute does not exist.
	ErrNotFound = stderrors.New("not found")
	// ErrSchemaMismatch is returned when appended columns differ from the table's.
	ErrSchemaMismatch = stderrors.New("incompatible table schema")
	// ErrNotTable is returned when a path names a group where a table is required.
	ErrNotTable = stderrors.New("path is not a table")
	// ErrNotGroup is returned when a table sits where a group is required.
	ErrNotGroup = stderrors.New("path crosses a table")
	// ErrInvalidPath is returned for empty paths or malformed segments.
	ErrInvalidPath = stderrors.New("invalid path")
	// ErrReadOnly is returned when writing through a read-only handle.
	ErrReadOnly = stderrors.New("store opened read-only")
)
