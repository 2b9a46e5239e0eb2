package normalize

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// sheetRows opens an xlsx payload and returns the rows of the first sheet whose
// name starts with prefix (case-insensitive), or of the first sheet.
func sheetRows(partner constants.Partner, payload []byte, prefix string) ([][]string, error) {
	if len(payload) == 0 {
		return nil, emptyPayload(partner)
	}
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: open workbook: %w", partner, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, emptyDocument(partner, "workbook has no sheets")
	}
	sheet := sheets[0]
	for _, s := range sheets {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
			sheet = s
			break
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", partner, sheet, err)
	}
	return rows, nil
}

// cell returns rows[r][c] trimmed, or "" when out of range.
func cell(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) || c < 0 || c >= len(rows[r]) {
		return ""
	}
	return strings.TrimSpace(rows[r][c])
}

// header maps lower-cased, trimmed header names to their column index.
func header(row []string) map[string]int {
	h := make(map[string]int, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	return h
}

func column(h map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h[strings.ToLower(n)]; ok {
			return i, true
		}
	}
	return -1, false
}

// sheetDate parses the date formats seen in partner spreadsheets, including
// Excel serial day numbers.
func sheetDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := utils.ParseDate(s, "02-01-2006", "2-1-2006", "02.01.2006", "2006-01-02", "01-02-06", "02/01/2006", "2006-01-02 15:04:05"); err == nil {
		return t, nil
	}
	if serial, err := utils.ParseAmount(s); err == nil && serial.IsPositive() {
		t, err := excelize.ExcelDateToTime(serial.InexactFloat64(), false)
		if err == nil {
			return utils.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised sheet date %q", s)
}
