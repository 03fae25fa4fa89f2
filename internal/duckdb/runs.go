package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one processed input.
type Run struct {
	Dataset string
	Tool    string
	Input   FileFingerprint
	Results int
}

// RecordRun stores or replaces the run record of a dataset.
func (s *Store) RecordRun(r Run) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE dataset=?", r.Dataset); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?)`,
		r.Dataset, r.Tool, r.Input.Path, r.Input.Size, storedTime(r.Input.ModTime), int64(r.Results))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LookupRun returns the run record of dataset, or nil when it was never
// stored.
func (s *Store) LookupRun(dataset string) (*Run, error) {
	var r Run
	var results int64
	err := s.db.QueryRow(`SELECT dataset, tool, input_path, input_size, input_modtime, results
		FROM runs WHERE dataset=?`, dataset).
		Scan(&r.Dataset, &r.Tool, &r.Input.Path, &r.Input.Size, &r.Input.ModTime, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	r.Results = int(results)
	return &r, nil
}

// Current reports whether dataset was stored from an input with the same
// size and modification time as fp.
func (s *Store) Current(dataset string, fp FileFingerprint) (bool, error) {
	r, err := s.LookupRun(dataset)
	if err != nil || r == nil {
		return false, err
	}
	return r.Input.Size == fp.Size && r.Input.ModTime.Equal(storedTime(fp.ModTime)), nil
}

// storedTime truncates t to the microsecond resolution of a TIMESTAMP column.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
