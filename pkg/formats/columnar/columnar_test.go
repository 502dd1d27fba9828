package columnar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
)

func testFrames(t *testing.T, names []string) []*cf.Frame {
	t.Helper()
	a, err := cf.FromRows(names, [][]string{
		{"1", "Zürich", "x,y"},
		{"1", "", `say "hi"`},
	})
	require.NoError(t, err)
	b, err := cf.FromRows(names, [][]string{
		{"2", "Genève", "z"},
	})
	require.NoError(t, err)
	return []*cf.Frame{a, b}
}

func TestExportRoundTrip(t *testing.T) {
	names := []string{"ID", "NAME", "Unnamed: 2"}

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultWriterConfig(names)
			cfg.Format = format

			w, err := NewWriter(&buf, cfg)
			require.NoError(t, err)
			for _, f := range testFrames(t, names) {
				require.NoError(t, w.WriteFrame(f))
			}
			require.NoError(t, w.Close())

			assert.Equal(t, format, w.Format())
			assert.Equal(t, int64(3), w.RowsWritten())
			assert.Equal(t, int64(buf.Len()), w.BytesWritten())

			got, err := ReadFrame(bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			assert.Equal(t, names, got.Names())
			assert.Equal(t, [][]string{
				{"1", "Zürich", "x,y"},
				{"1", "", `say "hi"`},
				{"2", "Genève", "z"},
			}, got.Rows())
		})
	}
}

func TestExportEmpty(t *testing.T) {
	names := []string{"ID"}
	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultWriterConfig(names)
			cfg.Format = format
			w, err := NewWriter(&buf, cfg)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			got, err := ReadFrame(bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			assert.Equal(t, 0, got.NumRows())
		})
	}
}

func TestWriterRejectsMismatchedFrame(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultWriterConfig([]string{"A", "B"})
	cfg.Format = CSV
	w, err := NewWriter(&buf, cfg)
	require.NoError(t, err)

	f, err := cf.FromRows([]string{"B", "A"}, [][]string{{"1", "2"}})
	require.NoError(t, err)
	assert.Error(t, w.WriteFrame(f))
}

func TestWriterConfigErrors(t *testing.T) {
	var buf bytes.Buffer

	_, err := NewWriter(&buf, nil)
	assert.Error(t, err)

	_, err = NewWriter(&buf, &WriterConfig{Format: Parquet})
	assert.Error(t, err)

	_, err = NewWriter(&buf, &WriterConfig{Format: "orc", Columns: []string{"A"}})
	assert.Error(t, err)

	_, err = NewWriter(&buf, &WriterConfig{Format: Avro, Columns: []string{"A"}, Compression: "brotli"})
	assert.Error(t, err)

	_, err = NewWriter(&buf, &WriterConfig{Format: Parquet, Columns: []string{"A"}, Compression: "lzma"})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	_, err = ParseFormat("orc")
	assert.Error(t, err)

	assert.Equal(t, ".avro", GetFormatInfo(Avro).FileExtension)
	assert.Nil(t, GetFormatInfo("orc"))
}

func TestAvroFieldNames(t *testing.T) {
	assert.Equal(t,
		[]string{"ID", "Unnamed__2", "A_1", "_1st", "A_1_1"},
		avroFieldNames([]string{"ID", "Unnamed: 2", "A.1", "1st", "A-1"}))
}
