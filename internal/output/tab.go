// Package output writes the PHRP tab-delimited tables: synopsis and
// first-hits rows plus the sequence and protein cross-reference tables.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// TabWriter writes rows in tab-delimited format under a fixed header.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
	rows    int
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer, columns []string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// Columns returns the header column names.
func (tw *TabWriter) Columns() []string {
	return tw.columns
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row. The number of values must match the header.
func (tw *TabWriter) Write(values ...string) error {
	if len(values) != len(tw.columns) {
		return fmt.Errorf("write row: %d values for %d columns", len(values), len(tw.columns))
	}
	tw.rows++
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Rows returns the number of data rows written.
func (tw *TabWriter) Rows() int {
	return tw.rows
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// TabFile is a TabWriter backed by a file it owns.
type TabFile struct {
	*TabWriter
	f    *os.File
	path string
}

// CreateTabFile creates path and writes the header.
func CreateTabFile(path string, columns []string) (*TabFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	tf := &TabFile{TabWriter: NewTabWriter(f, columns), f: f, path: path}
	if err := tf.WriteHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	return tf, nil
}

// Path returns the file path.
func (tf *TabFile) Path() string {
	return tf.path
}

// Close flushes and closes the file.
func (tf *TabFile) Close() error {
	if err := tf.Flush(); err != nil {
		tf.f.Close()
		return fmt.Errorf("flush %s: %w", tf.path, err)
	}
	return tf.f.Close()
}
