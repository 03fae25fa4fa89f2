// Package lineio reads line-oriented search-engine result files, plain or
// gzip compressed.
package lineio

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader reads lines from a possibly gzipped file.
type Reader struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
}

// Open opens path for line reading. Gzip input is detected from its magic
// bytes, not its extension. A path of "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}

	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReader wraps an io.Reader, transparently decompressing gzip data.
func NewReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReader(in)
	r := &Reader{reader: br}

	// Check for gzip magic number (0x1f, 0x8b)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.reader = bufio.NewReader(r.gzipReader)
	}

	return r, nil
}

// Next returns the next line without its line terminator. It returns
// io.EOF after the last line.
func (r *Reader) Next() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			r.lineNumber++
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("read line %d: %w", r.lineNumber+1, err)
	}
	r.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// Each calls fn for every line. index counts lines from 0. The context is
// checked before each line; cancellation stops reading and returns the
// context error.
func (r *Reader) Each(ctx context.Context, fn func(line string, index int) error) error {
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(line, index); err != nil {
			return err
		}
	}
}

// LineNumber returns the number of lines read so far.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Close closes the reader and any underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParseError represents an error during result file parsing with line context.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: parse error at line %d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// Read reads decompressed bytes, for consumers that parse the stream
// themselves.
func (r *Reader) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}
