package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"moneytracker/internal/core"
)

const (
	dateLayout = "2006-01-02 15:04"
	lastColumn = "K"
)

// header is written to row 1 of an empty sheet. Column A holds the ID.
var header = []any{
	"ID", "Date", "Type", "Category", "Account", "To Account",
	"Amount", "Currency", "Converted Amount", "Note", "Last Modified",
}

func toRow(tx core.Transaction) []any {
	converted := ""
	if tx.ConvertedAmount != nil {
		converted = core.FormatAmount(*tx.ConvertedAmount)
	}
	lastModified := ""
	if !tx.LastModified.IsZero() {
		lastModified = tx.LastModified.UTC().Format(dateLayout)
	}
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.Date.UTC().Format(dateLayout),
		tx.Type.String(),
		tx.Category,
		tx.Account,
		tx.ToAccount,
		core.FormatAmount(tx.Amount),
		tx.Currency,
		converted,
		tx.Note,
		lastModified,
	}
}

// parseID reads an ID cell. Unformatted numeric cells arrive as float64.
func parseID(v any) (int64, bool) {
	switch v := v.(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// findRow returns the 1-based sheet row holding id, or -1.
func findRow(values [][]any, id int64) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if got, ok := parseID(row[0]); ok && got == id {
			return i + 1
		}
	}
	return -1
}

// idsOf lists the IDs in column A, skipping the header and blank rows.
func idsOf(values [][]any) []int64 {
	out := make([]int64, 0, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if id, ok := parseID(row[0]); ok {
			out = append(out, id)
		}
	}
	return out
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
}
