package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TripRecord is one driver trip row recovered from pasted clipboard text.
type TripRecord struct {
	Courier    string
	TaskID     string
	Date       *time.Time
	Total      int
	Successful int
	Failed     int
}

// TripExtractor recovers trip rows from free-form pasted text. Each
// implementation is a legacy fixed-offset micro-format: it anchors on a
// known cell and reads sibling fields at fixed offsets. Brittle by design;
// format drift means adding a new extractor, not patching this one.
type TripExtractor interface {
	Extract(text string) []TripRecord
}

var taskIDPattern = regexp.MustCompile(`^AT\d+[A-Z0-9]+$`)

var tripDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
}

// CourierTripExtractor anchors on a known driver name from the roster.
// Field offsets relative to the anchor cell: +1 task ID, +2 trip date,
// +4 total parcels, +5 successful, +6 failed.
type CourierTripExtractor struct {
	knownNames map[string]string
}

// NewCourierTripExtractor builds an extractor for the given roster names.
// Matching is case-insensitive on the trimmed cell.
func NewCourierTripExtractor(rosterNames []string) *CourierTripExtractor {
	m := make(map[string]string, len(rosterNames))
	for _, n := range rosterNames {
		m[strings.ToLower(strings.TrimSpace(n))] = strings.TrimSpace(n)
	}
	return &CourierTripExtractor{knownNames: m}
}

func (e *CourierTripExtractor) Extract(text string) []TripRecord {
	cells := flattenCells(text)
	var out []TripRecord
	for i, c := range cells {
		name, ok := e.knownNames[strings.ToLower(c)]
		if !ok {
			continue
		}
		rec := TripRecord{Courier: name}
		if id := cellOffset(cells, i, 1); taskIDPattern.MatchString(id) {
			rec.TaskID = id
		}
		rec.Date = parseTripDate(cellOffset(cells, i, 2))
		rec.Total = parseCount(cellOffset(cells, i, 4))
		rec.Successful = parseCount(cellOffset(cells, i, 5))
		rec.Failed = parseCount(cellOffset(cells, i, 6))
		out = append(out, rec)
	}
	return out
}

// ShopeeTripExtractor anchors on the Shopee task ID pattern AT<digits>...
// Offsets: +1 driver name, +2 trip date, +3 total, +4 successful, +5 failed.
type ShopeeTripExtractor struct{}

func (ShopeeTripExtractor) Extract(text string) []TripRecord {
	cells := flattenCells(text)
	var out []TripRecord
	for i, c := range cells {
		if !taskIDPattern.MatchString(c) {
			continue
		}
		rec := TripRecord{
			TaskID:     c,
			Courier:    cellOffset(cells, i, 1),
			Date:       parseTripDate(cellOffset(cells, i, 2)),
			Total:      parseCount(cellOffset(cells, i, 3)),
			Successful: parseCount(cellOffset(cells, i, 4)),
			Failed:     parseCount(cellOffset(cells, i, 5)),
		}
		out = append(out, rec)
	}
	return out
}

var multiSpace = regexp.MustCompile(`\t| {2,}`)

// flattenCells turns pasted table text into a flat cell sequence: each
// line is split on tabs or runs of 2+ spaces, one cell per entry. Web
// tables pasted as one-field-per-line and tab-delimited rows both reduce
// to the same sequence, so the offset arithmetic works for either.
func flattenCells(text string) []string {
	var cells []string
	for _, line := range splitLines(text) {
		for _, c := range multiSpace.Split(line, -1) {
			c = strings.TrimSpace(c)
			if c != "" {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

func cellOffset(cells []string, base, off int) string {
	idx := base + off
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseTripDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range tripDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
