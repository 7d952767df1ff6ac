package format

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the resolved path does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrFormatMismatch indicates the magic number or leading text marker is wrong.
	ErrFormatMismatch = errors.New("file does not appear to be the correct format")
	// ErrUnsupportedVersion indicates a version this reader cannot decode.
	ErrUnsupportedVersion = fmt.Errorf("unable to read this version: %w", ErrFormatMismatch)
	// ErrTruncated indicates the input ended before a record was complete.
	ErrTruncated = errors.New("unexpected end of file")
	// ErrMalformed indicates a text record could not be parsed.
	ErrMalformed = errors.New("malformed record")
	// ErrMapping indicates the file could not be memory mapped.
	ErrMapping = errors.New("unable to map file")
	// ErrOutOfRange indicates an index outside the valid range.
	ErrOutOfRange = errors.New("index out of range")
	// ErrClosed indicates access through a view after its file was closed.
	ErrClosed = errors.New("file is closed")
)
