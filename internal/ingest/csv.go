package ingest

import (
	"strings"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
)

// Known header names of the courier TPL export, matched after lower-casing
// and stripping quote characters.
const (
	headerTrackingNumber = "trackingnumber"
	headerStatus         = "tplstatus"
	headerUpdatedBy      = "laststatusupdatedbyname"
	headerUpdatedAt      = "laststatusupdatedat"
	headerSubDirection   = "subdirection"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// SplitCSVLine splits a single CSV line on commas outside double-quote
// spans. Two consecutive quotes inside a quoted span emit one literal
// quote. Fields are trimmed. Malformed input (unmatched quotes) is
// tolerated: the function never fails, it just keeps accumulating.
func SplitCSVLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

// ColumnMap holds resolved column indexes; -1 means the column is absent
// and every row simply yields no value for that field.
type ColumnMap struct {
	Tracking  int
	Status    int
	UpdatedBy int
	UpdatedAt int
	Direction int
}

// ResolveColumns locates the semantic columns in a header row. The
// tracking number falls back to column 0 when no header matches, all
// other columns report -1 when absent.
func ResolveColumns(header []string) ColumnMap {
	cm := ColumnMap{Tracking: 0, Status: -1, UpdatedBy: -1, UpdatedAt: -1, Direction: -1}
	for i, h := range header {
		norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), `"`, ""))
		switch {
		case norm == headerTrackingNumber:
			cm.Tracking = i
		case norm == headerStatus:
			cm.Status = i
		case norm == headerUpdatedBy:
			cm.UpdatedBy = i
		case norm == headerUpdatedAt:
			cm.UpdatedAt = i
		case norm == headerSubDirection || strings.Contains(norm, "direction"):
			// Loosened match: "direction" / "sub_direction" variants.
			if cm.Direction == -1 {
				cm.Direction = i
			}
		}
	}
	return cm
}

// ParseUpdateCSV turns a whole CSV payload (header + data lines) into
// update records. It never fails; blank lines are skipped, missing
// columns leave the corresponding record fields nil.
func ParseUpdateCSV(text string) []models.UpdateRecord {
	lines := splitLines(text)
	if len(lines) < 2 {
		return nil
	}

	cm := ResolveColumns(SplitCSVLine(lines[0]))

	out := make([]models.UpdateRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, RowToRecord(SplitCSVLine(line), cm))
	}
	return out
}

// RowToRecord builds one update record from an already-split row using
// resolved column indexes. Shared by the CSV and XLSX paths.
func RowToRecord(fields []string, cm ColumnMap) models.UpdateRecord {
	rec := models.UpdateRecord{
		TrackingNumber: NormalizeTrackingNumber(cellAt(fields, cm.Tracking)),
	}
	if v := cellAt(fields, cm.Status); v != "" {
		rec.Status = &v
	}
	if v := cellAt(fields, cm.UpdatedBy); v != "" {
		rec.UpdatedBy = &v
	}
	if v := cellAt(fields, cm.UpdatedAt); v != "" {
		if t, ok := ParseTimestamp(v); ok {
			rec.UpdatedAt = &t
		}
	}
	if v := cellAt(fields, cm.Direction); v != "" {
		rec.Direction = &v
	}
	return rec
}

// NormalizeTrackingNumber strips wrapping quotes, trims and upper-cases.
func NormalizeTrackingNumber(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
	return strings.ToUpper(s)
}

// ParseTimestamp tries the known export layouts; the second return is
// false when none matched.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func cellAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	// Drop trailing empty lines so the header-only check stays meaningful.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
