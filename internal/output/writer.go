// File: internal/output/writer.go

// Package output serializes survey rows to a CSV file with the fixed
// six-column header downstream tooling keys on.
package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/cafogleman/cb-response-surveyor/internal/backend"
)

// Header is the single fixed header row, written once regardless of mode.
var Header = []string{"endpoint", "username", "process_path", "cmdline", "program", "source"}

// Writer emits survey rows to a CSV file. Not safe for concurrent use;
// the survey runs single-threaded and that is fine.
type Writer struct {
	file *os.File
	csv  *csv.Writer
}

// NewWriter creates (truncating) the output file and writes the header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := &Writer{file: f, csv: csv.NewWriter(f)}
	if err := w.csv.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return w, nil
}

// WriteRecords emits one row per record, tagged with the program and source
// provenance labels.
func (w *Writer) WriteRecords(records []backend.Record, program, source string) error {
	for _, r := range records {
		row := []string{r.Endpoint, r.Username, r.Path, r.Cmdline, program, source}
		if err := w.csv.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file. Flush errors surface
// here; a survey that cannot persist its rows has failed.
func (w *Writer) Close() error {
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush output: %w", flushErr)
	}
	return closeErr
}
