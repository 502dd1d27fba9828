package columnar

import (
	"encoding/csv"
	"fmt"
	"io"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

// csvWriter implements Writer for CSV
type csvWriter struct {
	out            *countingWriter
	config         *WriterConfig
	writer         *csv.Writer
	recordsWritten int64
}

func newCSVWriter(w *countingWriter, config *WriterConfig) (*csvWriter, error) {
	if config.Compression != "" && config.Compression != "none" {
		return nil, fmt.Errorf("CSV export does not support compression %q", config.Compression)
	}
	cw := &csvWriter{out: w, config: config, writer: csv.NewWriter(w)}
	if err := cw.writer.Write(config.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return cw, nil
}

func (cw *csvWriter) WriteFrame(f *cf.Frame) error {
	if err := checkColumns(cw.config.Columns, f); err != nil {
		return err
	}
	for r := 0; r < f.NumRows(); r++ {
		if err := cw.writer.Write(f.Row(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.recordsWritten += int64(f.NumRows())
	return nil
}

func (cw *csvWriter) Close() error {
	cw.writer.Flush()
	return cw.writer.Error()
}

func (cw *csvWriter) Format() Format {
	return CSV
}

// BytesWritten counts only flushed bytes.
func (cw *csvWriter) BytesWritten() int64 {
	return cw.out.n
}

func (cw *csvWriter) RowsWritten() int64 {
	return cw.recordsWritten
}

func readCSV(r io.Reader) (*cf.Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}
	return cf.FromRows(header, rows)
}
