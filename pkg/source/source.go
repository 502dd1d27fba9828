// Package source opens and decodes the delimited input of an ingest run and
// reads it back in fixed-size chunks of rows.
package source

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// StdinPath selects standard input in place of a file path.
const StdinPath = "-"

// NoInputMessage is reported when nothing is piped and no file is named.
const NoInputMessage = "No data piped and no CSV file path provided"

// Supported input encodings.
const (
	EncodingLatin1  = "iso-8859-1"
	EncodingWindows = "windows-1252"
	EncodingUTF8    = "utf-8"
)

// Input is an opened input stream.
type Input struct {
	io.Reader
	// Name is the file path, or "-" for standard input.
	Name   string
	closer io.Closer
}

// Close closes the underlying file. Standard input is left open.
func (in *Input) Close() error {
	if in.closer == nil {
		return nil
	}
	return in.closer.Close()
}

// StdinIsTerminal reports whether the process's standard input is a terminal.
func StdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// OpenInput opens path, or stdin when path is "" or "-". Reading from an
// interactive terminal is refused with a usage error.
func OpenInput(path string, stdin io.Reader, isTerminal func() bool) (*Input, error) {
	if path == "" || path == StdinPath {
		if isTerminal != nil && isTerminal() {
			return nil, errors.New(errors.ErrorTypeUsage, NoInputMessage)
		}
		return &Input{Reader: stdin, Name: StdinPath}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").WithDetail("path", path)
	}
	return &Input{Reader: f, Name: path, closer: f}, nil
}

// LookupEncoding returns the decoder for name. The empty name selects
// ISO-8859-1.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingLatin1, "latin1", "latin-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case EncodingWindows, "cp1252":
		return charmap.Windows1252, nil
	case EncodingUTF8, "utf8":
		return encoding.Nop, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported input encoding %q", name)
}

// Decode wraps r so it yields UTF-8 text decoded from the named encoding.
func Decode(r io.Reader, name string) (io.Reader, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == encoding.Nop {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
