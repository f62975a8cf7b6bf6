package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Compile-time interface check.
var _ ExecutionArchive = (*ParquetStore)(nil)

// ParquetStore implements ExecutionArchive using Parquet files on disk, one
// file per day:
//
//	<DataDir>/executions/<YYYY-MM-DD>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ArchiveExecutions appends execution records, grouped by day. Existing
// records for the same day are merged and deduplicated by order id, so
// re-archiving a batch is safe.
func (s *ParquetStore) ArchiveExecutions(_ context.Context, records []ExecutionRecord) error {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[string][]ExecutionRecord)
	for _, r := range records {
		date := time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02")
		groups[date] = append(groups[date], r)
	}

	for date, batch := range groups {
		path := s.executionPath(date)

		existing, _ := readParquetFile[ExecutionRecord](path)
		merged := mergeExecutionRecords(existing, batch)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving executions for %s: %w", date, err)
		}
	}
	return nil
}

// ReadExecutions returns the archived executions for one day, sorted by
// timestamp. A day with no archive returns an empty slice.
func (s *ParquetStore) ReadExecutions(_ context.Context, day time.Time) ([]ExecutionRecord, error) {
	path := s.executionPath(day.UTC().Format("2006-01-02"))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	records, err := readParquetFile[ExecutionRecord](path)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// executionPath returns the filesystem path for a daily execution file.
func (s *ParquetStore) executionPath(date string) string {
	return filepath.Join(s.DataDir, "executions", date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeExecutionRecords deduplicates records by order id, preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeExecutionRecords(existing, incoming []ExecutionRecord) []ExecutionRecord {
	seen := make(map[string]ExecutionRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.OrderID] = r
	}
	for _, r := range incoming {
		seen[r.OrderID] = r
	}

	merged := make([]ExecutionRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
