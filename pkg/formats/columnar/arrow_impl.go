package columnar

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

// arrowWriter implements Writer for the Arrow IPC file format
type arrowWriter struct {
	out            *countingWriter
	config         *WriterConfig
	arrowSchema    *arrow.Schema
	fileWriter     *ipc.FileWriter
	pool           memory.Allocator
	recordsWritten int64
	mu             sync.Mutex
}

func newArrowWriter(w *countingWriter, config *WriterConfig) (*arrowWriter, error) {
	arrowSchema := stringSchema(config.Columns)
	pool := memory.NewGoAllocator()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(arrowSchema), ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow writer: %w", err)
	}

	return &arrowWriter{
		out:         w,
		config:      config,
		arrowSchema: arrowSchema,
		fileWriter:  fw,
		pool:        pool,
	}, nil
}

func (aw *arrowWriter) WriteFrame(f *cf.Frame) error {
	if err := checkColumns(aw.config.Columns, f); err != nil {
		return err
	}
	if f.NumRows() == 0 {
		return nil
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	record := buildRecord(aw.pool, aw.arrowSchema, f)
	defer record.Release()

	if err := aw.fileWriter.Write(record); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	aw.recordsWritten += record.NumRows()
	return nil
}

func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return Arrow
}

func (aw *arrowWriter) BytesWritten() int64 {
	return aw.out.n
}

func (aw *arrowWriter) RowsWritten() int64 {
	return aw.recordsWritten
}

func readArrow(r ReadSeekerAt) (*cf.Frame, error) {
	pool := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	defer fr.Close()

	names := fieldNames(fr.Schema())
	columns := make([][]string, len(names))
	for i := 0; i < fr.NumRecords(); i++ {
		record, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		for c := range columns {
			if columns[c], err = appendStrings(columns[c], record.Column(c)); err != nil {
				return nil, fmt.Errorf("column %q: %w", names[c], err)
			}
		}
	}
	return cf.FromColumns(names, columns)
}

// stringSchema returns a schema of non-null string fields.
func stringSchema(names []string) *arrow.Schema {
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String}
	}
	return arrow.NewSchema(fields, nil)
}

func buildRecord(pool memory.Allocator, schema *arrow.Schema, f *cf.Frame) arrow.Record {
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for i := range schema.Fields() {
		builder.Field(i).(*array.StringBuilder).AppendValues(f.Column(i), nil)
	}
	return builder.NewRecord()
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		names[i] = field.Name
	}
	return names
}

func appendStrings(dst []string, col arrow.Array) ([]string, error) {
	switch a := col.(type) {
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			dst = append(dst, a.Value(i))
		}
	case *array.LargeString:
		for i := 0; i < a.Len(); i++ {
			dst = append(dst, a.Value(i))
		}
	default:
		return nil, fmt.Errorf("unsupported column type %s", col.DataType())
	}
	return dst, nil
}
