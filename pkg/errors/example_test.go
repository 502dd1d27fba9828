package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

func Example() {
	err := errors.New(errors.ErrorTypeUsage, "No data piped and no CSV file path provided")
	fmt.Println(err.Error())

	// Output:
	// usage: No data piped and no CSV file path provided
}

func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "malformed input row").
		WithDetail("line", 42)

	if errors.IsType(err, errors.ErrorTypeParse) {
		fmt.Println("parse error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}
	fmt.Println(err)

	// Output:
	// parse error
	// caused by unexpected EOF
	// parse: malformed input row (line=42): unexpected EOF
}

// Wrapping keeps every type in the chain visible to IsType.
func ExampleIsType() {
	inner := errors.New(errors.ErrorTypeStorage, "cannot append to table").
		WithDetail("path", "1/accts/v1")
	outer := errors.Wrap(inner, errors.ErrorTypeInternal, "ingest failed")

	fmt.Println(errors.IsType(outer, errors.ErrorTypeStorage))
	fmt.Println(errors.IsType(outer, errors.ErrorTypeUsage))

	// Output:
	// true
	// false
}

func ExampleError_WithDetail() {
	err := errors.New(errors.ErrorTypeParse, "empty partition key in first column").
		WithDetail("row", 7).
		WithDetail("chunk", 0)
	fmt.Println(err)

	// Output:
	// parse: empty partition key in first column (chunk=0, row=7)
}
