// Package columnar holds the in-memory, column-major representation of a
// batch of text rows and the fixed-width block codec used to persist it.
//
// # Overview
//
// A Frame is what flows between the CSV reader and the store: ordered column
// names plus one []string per column. Frames are built from row-major chunks,
// split into per-key groups, and projected or filtered on the read path.
//
// # Fixed-width blocks
//
// Each column of an append is encoded as a block of NUL-padded fields of a
// single width, then compressed:
//
//	+-----------------+----------------+---------------+------------------------+
//	| algorithm (1 B) | width (uvarint)| rows (uvarint)| compressed payload     |
//	+-----------------+----------------+---------------+------------------------+
//
// The width is chosen from item-size hints (21 bytes by default, wider or
// narrower for a handful of well-known column names) and grows to fit the
// longest value, so a hint never truncates data. Trailing NUL bytes are not
// significant and are stripped on decode.
//
// # Usage
//
//	frame, err := columnar.FromRows([]string{"ID", "NAME"}, rows)
//	for _, g := range frame.GroupBy(0) {
//	    widths := g.Frame.ItemSizes(columnar.DefaultItemsizeHints())
//	    ...
//	}
package columnar
