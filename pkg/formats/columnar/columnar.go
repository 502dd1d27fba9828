// Package columnar exports store tables to columnar and row file formats.
//
// Every exported column is a non-null UTF-8 string column, named after the
// table column. Writers accept frames in any number of batches; readers load
// a whole file back into a single frame.
package columnar

import (
	"fmt"
	"io"
	"strings"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

// Format represents an export file format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
	// CSV is comma separated text with a header row
	CSV Format = "csv"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{Parquet, Arrow, Avro, CSV}
}

// ParseFormat maps a format name, case-insensitively, to a Format.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format: %q", name)
}

// Writer writes frames in one file format
type Writer interface {
	// WriteFrame writes every row of f. Its columns must match the
	// configured columns in name and order.
	WriteFrame(f *cf.Frame) error
	// Close flushes buffered data and writes any file footer. It does not
	// close the underlying io.Writer.
	Close() error
	// Format returns the file format
	Format() Format
	// BytesWritten returns bytes written to the underlying writer
	BytesWritten() int64
	// RowsWritten returns rows written
	RowsWritten() int64
}

// WriterConfig configures export writers
type WriterConfig struct {
	Format  Format
	Columns []string
	// Compression names the codec inside the file: zstd, snappy, gzip or
	// none for Parquet; deflate, snappy or none for Avro. Empty selects the
	// format default.
	Compression string
	// Name is the record name used by formats that need one (Avro).
	Name string
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig(columns []string) *WriterConfig {
	return &WriterConfig{
		Format:  Parquet,
		Columns: append([]string(nil), columns...),
		Name:    "row",
	}
}

// NewWriter creates a new writer for config.Format
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		return nil, fmt.Errorf("writer config is required")
	}
	if len(config.Columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}

	cw := &countingWriter{w: w}
	switch config.Format {
	case Parquet:
		return newParquetWriter(cw, config)
	case Arrow:
		return newArrowWriter(cw, config)
	case Avro:
		return newAvroWriter(cw, config)
	case CSV:
		return newCSVWriter(cw, config)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", config.Format)
	}
}

// ReadSeekerAt is the input needed by ReadFrame. *os.File and *bytes.Reader
// satisfy it.
type ReadSeekerAt interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// ReadFrame reads a whole file written in format back into a frame.
func ReadFrame(r ReadSeekerAt, format Format) (*cf.Frame, error) {
	switch format {
	case Parquet:
		return readParquet(r)
	case Arrow:
		return readArrow(r)
	case Avro:
		return readAvro(r)
	case CSV:
		return readCSV(r)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// FormatInfo provides information about export formats
type FormatInfo struct {
	Format        Format
	Name          string
	Description   string
	FileExtension string
	MIMEType      string
}

// GetFormatInfo returns information about a format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Parquet:
		return &FormatInfo{
			Format:        Parquet,
			Name:          "Apache Parquet",
			Description:   "Columnar storage format optimized for analytics",
			FileExtension: ".parquet",
			MIMEType:      "application/x-parquet",
		}
	case Arrow:
		return &FormatInfo{
			Format:        Arrow,
			Name:          "Apache Arrow",
			Description:   "In-memory columnar format",
			FileExtension: ".arrow",
			MIMEType:      "application/x-arrow",
		}
	case Avro:
		return &FormatInfo{
			Format:        Avro,
			Name:          "Apache Avro",
			Description:   "Row-oriented data serialization format",
			FileExtension: ".avro",
			MIMEType:      "application/x-avro",
		}
	case CSV:
		return &FormatInfo{
			Format:        CSV,
			Name:          "CSV",
			Description:   "Comma separated values with a header row",
			FileExtension: ".csv",
			MIMEType:      "text/csv",
		}
	default:
		return nil
	}
}

// countingWriter counts bytes passed to w. It hides any Close method of w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func checkColumns(want []string, f *cf.Frame) error {
	got := f.Names()
	if len(got) != len(want) {
		return fmt.Errorf("frame has %d columns, writer expects %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("frame column %d is %q, writer expects %q", i, got[i], want[i])
		}
	}
	return nil
}
