package handlers

import (
	"log"
	"net/http"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/recognition"
)

type AttendanceHandler struct {
	Service *recognition.Service
}

// attendanceRow mirrors a ledger row: column names as keys, values as stored.
type attendanceRow struct {
	Name       string `json:"Name"`
	Timestamp  string `json:"Timestamp"`
	Confidence string `json:"Confidence"`
}

func (ah *AttendanceHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	filter := attendance.Filter{
		Name: r.URL.Query().Get("name"),
		Date: r.URL.Query().Get("date"),
	}

	records, err := ah.Service.QueryAttendance(filter)
	if err != nil {
		log.Printf("handlers: Error getting attendance: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to get attendance: "+err.Error())
		return
	}

	rows := make([]attendanceRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, attendanceRow{
			Name:       rec.Name,
			Timestamp:  rec.FormattedTimestamp(),
			Confidence: rec.FormattedConfidence(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attendance":    rows,
		"total_records": len(rows),
	})
}
