package columnar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	out            *countingWriter
	config         *WriterConfig
	arrowSchema    *arrow.Schema
	fileWriter     *pqarrow.FileWriter
	pool           memory.Allocator
	recordsWritten int64
	mu             sync.Mutex
}

func newParquetWriter(w *countingWriter, config *WriterConfig) (*parquetWriter, error) {
	codec, err := getParquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	arrowSchema := stringSchema(config.Columns)
	pool := memory.NewGoAllocator()

	// Create Parquet writer properties
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithAllocator(pool),
	)

	// Create Arrow writer properties
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(arrowSchema, w, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	return &parquetWriter{
		out:         w,
		config:      config,
		arrowSchema: arrowSchema,
		fileWriter:  fw,
		pool:        pool,
	}, nil
}

func (pw *parquetWriter) WriteFrame(f *cf.Frame) error {
	if err := checkColumns(pw.config.Columns, f); err != nil {
		return err
	}
	if f.NumRows() == 0 {
		return nil
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	record := buildRecord(pw.pool, pw.arrowSchema, f)
	defer record.Release()

	if err := pw.fileWriter.WriteBuffered(record); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	pw.recordsWritten += record.NumRows()
	return nil
}

func (pw *parquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) BytesWritten() int64 {
	return pw.out.n
}

func (pw *parquetWriter) RowsWritten() int64 {
	return pw.recordsWritten
}

func readParquet(r ReadSeekerAt) (*cf.Frame, error) {
	fr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer fr.Close()

	pool := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet table: %w", err)
	}
	defer table.Release()

	names := fieldNames(table.Schema())
	columns := make([][]string, len(names))
	for c := range columns {
		columns[c] = make([]string, 0, table.NumRows())
		for _, chunk := range table.Column(c).Data().Chunks() {
			if columns[c], err = appendStrings(columns[c], chunk); err != nil {
				return nil, fmt.Errorf("column %q: %w", names[c], err)
			}
		}
	}
	return cf.FromColumns(names, columns)
}

func getParquetCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "zstd":
		return compress.Codecs.Zstd, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported Parquet compression: %q", name)
	}
}
