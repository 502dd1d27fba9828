// Package hdfmast partitions CSV master files into a hierarchical compressed
// store.
//
// Every input row is appended to the table {key}/{group_name}/{type_name},
// where key is the value of the row's first column. Tables are created on
// first use and extended by later runs. Columns are fixed-width strings whose
// width is the larger of a per-column minimum and the longest value seen.
// When a run finishes, every table it touched receives the input's column
// names as the column_names attribute.
//
// # Architecture
//
// The module is organized as a short chain of packages:
//
//   - pkg/source: opens the input (file or piped standard input), refuses to
//     read from an interactive terminal, decodes ISO-8859-1 and splits the
//     CSV stream into chunks.
//   - pkg/columnar: in-memory column frames, grouping by key and the
//     fixed-width block codec.
//   - pkg/compression: block codecs (zlib, gzip, deflate, zstd, snappy, s2,
//     lz4).
//   - pkg/store: the container file. Groups and tables are nested bbolt
//     buckets; tables hold one compressed block per column per append.
//   - internal/pipeline: the ingest run, one store transaction per chunk.
//   - pkg/formats/columnar: export of stored tables to Parquet, Arrow, Avro
//     and CSV.
//
// Supporting packages provide configuration (pkg/config), structured errors
// (pkg/errors), logging (pkg/logger), Prometheus metrics (pkg/metrics) and
// OpenTelemetry tracing (pkg/observability).
//
// # Quick Start
//
// Ingest a file, then inspect the result:
//
//	hdfmast master.h5db accts v1 accounts.csv
//	cat accounts.csv | hdfmast master.h5db accts v1
//	hdfmast ls master.h5db
//	hdfmast dump master.h5db 1/accts/v1 --where NAME=a
//	hdfmast export master.h5db 1/accts/v1 -f parquet -o accts-1.parquet
//
// From Go:
//
//	cfg := pipeline.DefaultConfig("master.h5db", "accts", "v1")
//	res, err := pipeline.New(cfg, logger, nil).Run(ctx, input)
//
// # Configuration
//
// Settings come from defaults, an optional YAML file (--config), HDFMAST_*
// environment variables and command-line flags, in increasing order of
// precedence:
//
//	chunk_size: 1000000
//	delimiter: ","
//	encoding: iso-8859-1
//	compression:
//	  algorithm: zlib
//	  level: best
//	itemsize:
//	  default: 21
//	  overrides:
//	    NAME: 60
//	    ITS: 4
//	attr_name: column_names
//	lock_timeout: 1s
package hdfmast
