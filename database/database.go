package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// sqliteDSN adds the connection options; they apply to every pooled connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	// every committed append must survive a crash
	return path + sep + "_journal_mode=WAL&_synchronous=FULL"
}

// InitDB opens the SQLite attendance database and creates its schema.
func InitDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		confidence REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_timestamp ON attendance(timestamp);
	`
	_, err = db.Exec(sqlStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create attendance table: %w", err)
	}

	log.Println("database initialized successfully at", dataSourceName)
	return db, nil
}
