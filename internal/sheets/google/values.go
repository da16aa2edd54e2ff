package google

import (
	"fmt"

	"aspire/internal/core"
)

// toTable converts API cells to text. Formatted reads already return
// strings; anything else is printed.
func toTable(values [][]interface{}) core.RawTable {
	out := make(core.RawTable, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch s := v.(type) {
		case string:
			out[i] = s
		case nil:
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func toRows(table core.RawTable) [][]interface{} {
	out := make([][]interface{}, len(table))
	for i, row := range table {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
