// Package store implements the hierarchical, compressed container that
// ingest runs append to.
//
// A store is a single bbolt file. Every segment of a slash-separated path is a
// nested bucket; the last segment of a table path is a table bucket:
//
//	<key>/                      group
//	  <group_name>/             group
//	    <type_name>/            table
//	      \x00schema            JSON: ordered columns with item sizes, row and block counts
//	      \x00attrs/            attribute name -> JSON value
//	      \x00cols/
//	        <column>/           block number (uint64 BE) -> column block
//
// Reserved entries start with a NUL byte, which is not allowed in path
// segments, so they never collide with user keys. Each append writes exactly
// one block per column under the same block number; blocks carry their own
// width and compression codec (see package columnar), so columns can be read,
// projected and filtered independently.
//
// The store is single-writer: bbolt holds an exclusive lock on the file for
// the lifetime of a writable handle.
package store
