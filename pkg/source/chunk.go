package source

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// DefaultChunkSize is the number of rows read per chunk.
const DefaultChunkSize = 1_000_000

// Chunk is a batch of consecutive input rows.
type Chunk struct {
	// Index is the zero-based position of the chunk in the stream.
	Index   int
	Columns []string
	Rows    [][]string
	// FirstLine is the input line number of the first row.
	FirstLine int
}

// Frame converts the chunk to a column frame.
func (c *Chunk) Frame() (*columnar.Frame, error) {
	return columnar.FromRows(c.Columns, c.Rows)
}

// ReaderOptions configures a ChunkReader.
type ReaderOptions struct {
	ChunkSize int
	Delimiter rune
}

// ChunkReader reads a header line, then yields the remaining rows in chunks.
type ChunkReader struct {
	r       *csv.Reader
	opts    ReaderOptions
	columns []string
	index   int
	done    bool
}

// NewChunkReader reads the header from r. An input without a header line is
// a parse error.
func NewChunkReader(r io.Reader, opts ReaderOptions) (*ChunkReader, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if !validDelimiter(opts.Delimiter) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid delimiter %q", opts.Delimiter)
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrorTypeParse, "input has no header row")
	}
	if err != nil {
		return nil, parseError(err, "failed to read header")
	}

	return &ChunkReader{
		r:       cr,
		opts:    opts,
		columns: DedupeColumns(header),
	}, nil
}

// Columns returns the header names after de-duplication.
func (c *ChunkReader) Columns() []string { return c.columns }

// Next returns the next chunk, or io.EOF once the input is exhausted. Each
// chunk holds at most ChunkSize rows. A row with a different number of fields
// than the header is a parse error.
func (c *ChunkReader) Next() (*Chunk, error) {
	if c.done {
		return nil, io.EOF
	}

	chunk := &Chunk{Index: c.index, Columns: c.columns}
	for len(chunk.Rows) < c.opts.ChunkSize {
		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			c.done = true
			return nil, parseError(err, "malformed input row")
		}
		if len(chunk.Rows) == 0 {
			chunk.FirstLine, _ = c.r.FieldPos(0)
		}
		chunk.Rows = append(chunk.Rows, rec)
	}

	if len(chunk.Rows) == 0 {
		return nil, io.EOF
	}
	c.index++
	return chunk, nil
}

// DedupeColumns names empty headers "Unnamed: <i>" and renames repeated
// headers to "<name>.1", "<name>.2" in order of appearance.
func DedupeColumns(header []string) []string {
	out := make([]string, len(header))
	counts := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		n := counts[name]
		for n > 0 {
			counts[name] = n + 1
			name = name + "." + strconv.Itoa(n)
			n = counts[name]
		}
		out[i] = name
		counts[name] = n + 1
	}
	return out
}

func parseError(err error, msg string) *errors.Error {
	e := errors.Wrap(err, errors.ErrorTypeParse, msg)
	var pe *csv.ParseError
	if stderrors.As(err, &pe) {
		e = e.WithDetail("line", pe.Line).WithDetail("column", pe.Column)
	}
	return e
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
