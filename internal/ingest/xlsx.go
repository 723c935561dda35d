package ingest

import (
	"bytes"
	"strings"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ParseUpdateXLSX reads the first sheet of an XLSX workbook and feeds its
// rows through the same header resolution as the CSV path. Unlike the text
// parsers this one can fail: a corrupt workbook is a caller problem, not
// a row-level one.
func ParseUpdateXLSX(content []byte) ([]models.UpdateRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "read xlsx rows")
	}
	if len(rows) < 2 {
		return nil, nil
	}

	cm := ResolveColumns(rows[0])

	out := make([]models.UpdateRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		out = append(out, RowToRecord(row, cm))
	}
	return out, nil
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
