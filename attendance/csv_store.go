package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var csvHeader = []string{"Name", "Timestamp", "Confidence"}

// CSVStore keeps the ledger as a "Name,Timestamp,Confidence" CSV file.
// Callers serialize access; Ledger does.
type CSVStore struct {
	path string
}

// NewCSVStore creates the file with its header row when it does not exist yet.
func NewCSVStore(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create attendance directory '%s': %w", dir, err)
		}
	}
	s := &CSVStore{path: path}

	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return s, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat attendance file '%s': %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendance file '%s': %w", path, err)
	}
	defer f.Close()
	if err := writeRow(f, csvHeader); err != nil {
		return nil, err
	}
	log.Printf("attendance: Created attendance file: %s", path)
	return s, nil
}

func (s *CSVStore) Path() string {
	return s.path
}

func writeRow(f *os.File, row []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: fsync %s: %v", ErrLedgerWrite, f.Name(), err)
	}
	return nil
}

func (s *CSVStore) Append(rec Record) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrLedgerWrite, s.path, err)
	}
	if err := writeRow(f, []string{rec.Name, rec.FormattedTimestamp(), rec.FormattedConfidence()}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrLedgerWrite, s.path, err)
	}
	return nil
}

func (s *CSVStore) ReadAll() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to open attendance file '%s': %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	var records []Record
	line := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("malformed attendance file '%s' at row %d: %w", s.path, line, err)
		}
		if line == 1 && row[0] == csvHeader[0] {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			log.Printf("attendance: Warning - skipping unreadable row %d in %s: %v", line, s.path, err)
			continue
		}
		records = append(records, rec)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func parseRow(row []string) (Record, error) {
	ts, err := time.ParseInLocation(TimestampLayout, row[1], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", row[1], err)
	}
	conf, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid confidence %q: %w", row[2], err)
	}
	return Record{Name: row[0], Timestamp: ts, Confidence: conf}, nil
}
