package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{
	"ID", "User ID", "User Email", "Action", "Resource Type",
	"Resource ID", "Description", "IP Address", "Status Code",
	"Timestamp", "Risk Level",
}

// WriteCSV encodes entries using the export column layout.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		var userID, email string
		if e.Actor != nil {
			if e.Actor.UserID != 0 {
				userID = strconv.FormatInt(e.Actor.UserID, 10)
			}
			email = e.Actor.Email
		}
		var status string
		if e.StatusCode != nil {
			status = strconv.Itoa(*e.StatusCode)
		}
		record := []string{
			strconv.FormatInt(e.ID, 10),
			userID,
			email,
			string(e.Action),
			e.ResourceType,
			e.ResourceID,
			e.Description,
			e.IPAddress,
			status,
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.RiskLevel),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFileName names a downloaded export for the given day.
func ExportFileName(day time.Time) string {
	return "audit_logs_" + day.Format("2006-01-02") + ".csv"
}
