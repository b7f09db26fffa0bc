// Package attendance holds the append-only attendance ledger.
//
// A Ledger serializes every append behind a single write lock and hands
// queries a point-in-time copy of the stored records. The storage format is
// pluggable through Store; CSVStore and the SQLite store in the database
// package are the two implementations shipped with the service.
package attendance

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the stored timestamp format. Date filters are matched
// as a prefix against this representation.
const TimestampLayout = "2006-01-02T15:04:05"

// ErrLedgerWrite is wrapped by every failed append.
var ErrLedgerWrite = errors.New("attendance ledger write failed")

// Record is a single committed attendance event.
type Record struct {
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// FormattedTimestamp returns the timestamp in the stored layout.
func (r Record) FormattedTimestamp() string {
	return r.Timestamp.Format(TimestampLayout)
}

// FormattedConfidence returns the confidence with fixed four decimal precision.
func (r Record) FormattedConfidence() string {
	return fmt.Sprintf("%.4f", r.Confidence)
}

// Store persists records. Append must not return before the record is
// durable; ReadAll returns records in insertion order.
type Store interface {
	Append(rec Record) error
	ReadAll() ([]Record, error)
}

// Filter narrows a query. Name is a case-insensitive substring, Date a prefix
// of the formatted timestamp (e.g. "2024-01-01"). Empty fields match all.
type Filter struct {
	Name string
	Date string
}

func (f Filter) matches(rec Record) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Date != "" && !strings.HasPrefix(rec.FormattedTimestamp(), f.Date) {
		return false
	}
	return true
}

type Ledger struct {
	store Store
	mu    sync.RWMutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append commits one record. The returned record carries the timestamp
// truncated to the stored precision.
func (l *Ledger) Append(name string, ts time.Time, confidence float64) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, fmt.Errorf("%w: empty identity name", ErrLedgerWrite)
	}
	rec := Record{Name: name, Timestamp: ts.Truncate(time.Second), Confidence: confidence}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Append(rec); err != nil {
		if errors.Is(err, ErrLedgerWrite) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return rec, nil
}

// Query returns the matching records in insertion order.
func (l *Ledger) Query(filter Filter) ([]Record, error) {
	l.mu.RLock()
	all, err := l.store.ReadAll()
	l.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance records: %w", err)
	}

	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
