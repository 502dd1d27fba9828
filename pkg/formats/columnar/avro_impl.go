package columnar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

// avroColumnsKey is the OCF metadata entry holding the original column
// names, since Avro field names are restricted to [A-Za-z_][A-Za-z0-9_]*.
const avroColumnsKey = "hdfmast.columns"

var avroInvalidChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// avroWriter implements Writer for Avro format
type avroWriter struct {
	out            *countingWriter
	config         *WriterConfig
	fields         []string
	ocfWriter      *goavro.OCFWriter
	recordsWritten int64
	mu             sync.Mutex
}

func newAvroWriter(w *countingWriter, config *WriterConfig) (*avroWriter, error) {
	compression, err := getAvroCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	fields := avroFieldNames(config.Columns)
	name := config.Name
	if name == "" {
		name = "row"
	}
	codec, err := goavro.NewCodec(avroSchema(avroName(name), fields))
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}

	columns, err := json.Marshal(config.Columns)
	if err != nil {
		return nil, err
	}
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
		MetaData:        map[string][]byte{avroColumnsKey: columns},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro writer: %w", err)
	}

	return &avroWriter{
		out:       w,
		config:    config,
		fields:    fields,
		ocfWriter: ocfWriter,
	}, nil
}

func (aw *avroWriter) WriteFrame(f *cf.Frame) error {
	if err := checkColumns(aw.config.Columns, f); err != nil {
		return err
	}
	if f.NumRows() == 0 {
		return nil
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	batch := make([]interface{}, f.NumRows())
	for r := range batch {
		native := make(map[string]interface{}, len(aw.fields))
		for c, field := range aw.fields {
			native[field] = f.Column(c)[r]
		}
		batch[r] = native
	}
	if err := aw.ocfWriter.Append(batch); err != nil {
		return fmt.Errorf("failed to write Avro records: %w", err)
	}
	aw.recordsWritten += int64(len(batch))
	return nil
}

// Close is a no-op: OCFWriter writes each Append as a complete block.
func (aw *avroWriter) Close() error {
	return nil
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) BytesWritten() int64 {
	return aw.out.n
}

func (aw *avroWriter) RowsWritten() int64 {
	return aw.recordsWritten
}

func readAvro(r ReadSeekerAt) (*cf.Frame, error) {
	ocfReader, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro reader: %w", err)
	}

	var fields []string
	var schema struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocfReader.Codec().Schema()), &schema); err != nil {
		return nil, fmt.Errorf("failed to parse Avro schema: %w", err)
	}
	for _, f := range schema.Fields {
		fields = append(fields, f.Name)
	}

	names := fields
	if raw, ok := ocfReader.MetaData()[avroColumnsKey]; ok {
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("failed to parse column names: %w", err)
		}
		if len(names) != len(fields) {
			return nil, fmt.Errorf("metadata names %d columns, schema has %d", len(names), len(fields))
		}
	}

	columns := make([][]string, len(fields))
	for ocfReader.Scan() {
		datum, err := ocfReader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read Avro record: %w", err)
		}
		record, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected Avro datum %T", datum)
		}
		for c, field := range fields {
			v, _ := record[field].(string)
			columns[c] = append(columns[c], v)
		}
	}
	if err := ocfReader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Avro file: %w", err)
	}
	return cf.FromColumns(names, columns)
}

func avroSchema(name string, fields []string) string {
	type avroField struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	s := struct {
		Type   string      `json:"type"`
		Name   string      `json:"name"`
		Fields []avroField `json:"fields"`
	}{Type: "record", Name: name}
	for _, f := range fields {
		s.Fields = append(s.Fields, avroField{Name: f, Type: "string"})
	}
	out, _ := json.Marshal(s)
	return string(out)
}

// avroFieldNames maps column names to unique valid Avro names.
func avroFieldNames(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	for i, col := range columns {
		name := avroName(col)
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

func avroName(s string) string {
	name := avroInvalidChars.ReplaceAllString(s, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

func getAvroCompression(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	case "none", "null":
		return goavro.CompressionNullLabel, nil
	default:
		return "", fmt.Errorf("unsupported Avro compression: %q", name)
	}
}
