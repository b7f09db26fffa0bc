package database

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/camden-git/faceattend/attendance"
)

// AttendanceStore is the SQLite attendance.Store. Rows are read back in
// insertion (id) order.
type AttendanceStore struct {
	DB *sql.DB
}

var _ attendance.Store = (*AttendanceStore)(nil)

func NewAttendanceStore(db *sql.DB) *AttendanceStore {
	return &AttendanceStore{DB: db}
}

func (s *AttendanceStore) Append(rec attendance.Record) error {
	confidence, err := strconv.ParseFloat(rec.FormattedConfidence(), 64)
	if err != nil {
		return fmt.Errorf("invalid confidence %v: %w", rec.Confidence, err)
	}

	sqlStr, args, err := psql.Insert("attendance").
		Columns("name", "timestamp", "confidence").
		Values(rec.Name, rec.FormattedTimestamp(), confidence).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL insert for attendance: %w", err)
	}

	if _, err := s.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to insert attendance for %s: %w", rec.Name, err)
	}
	return nil
}

func (s *AttendanceStore) ReadAll() ([]attendance.Record, error) {
	sqlStr, args, err := psql.Select("name", "timestamp", "confidence").
		From("attendance").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for attendance: %w", err)
	}

	rows, err := s.DB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var name, ts string
		var confidence float64
		if err := rows.Scan(&name, &ts, &confidence); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		parsed, err := time.ParseInLocation(attendance.TimestampLayout, ts, time.Local)
		if err != nil {
			log.Printf("database: Warning - skipping attendance row with bad timestamp %q: %v", ts, err)
			continue
		}
		records = append(records, attendance.Record{Name: name, Timestamp: parsed, Confidence: confidence})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return records, nil
}
