// Package duckdb stores canonical search results in DuckDB so processed
// datasets can be queried by scan or protein after the run.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding processed results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS results (
		dataset VARCHAR,
		result_id BIGINT,
		protein VARCHAR,
		scan BIGINT,
		charge BIGINT,
		peptide VARCHAR,
		clean_sequence VARCHAR,
		unique_seq_id BIGINT,
		mono_mass DOUBLE,
		del_m_ppm DOUBLE,
		result_rank BIGINT,
		primary_score DOUBLE,
		secondary_score DOUBLE,
		multiple_protein_count BIGINT,
		PRIMARY KEY (dataset, result_id, protein)
	)`,
	`CREATE TABLE IF NOT EXISTS sequences (
		dataset VARCHAR,
		unique_seq_id BIGINT,
		clean_sequence VARCHAR,
		mod_count BIGINT,
		mod_description VARCHAR,
		mono_mass DOUBLE,
		PRIMARY KEY (dataset, unique_seq_id)
	)`,
	`CREATE TABLE IF NOT EXISTS seq_proteins (
		dataset VARCHAR,
		unique_seq_id BIGINT,
		protein VARCHAR,
		cleavage_state BIGINT,
		terminus_state BIGINT,
		PRIMARY KEY (dataset, unique_seq_id, protein)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		dataset VARCHAR PRIMARY KEY,
		tool VARCHAR,
		input_path VARCHAR,
		input_size BIGINT,
		input_modtime TIMESTAMP,
		results BIGINT
	)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ClearDataset removes every row stored for dataset.
func (s *Store) ClearDataset(dataset string) error {
	for _, table := range []string{"results", "sequences", "seq_proteins", "runs"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE dataset=?", dataset); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
