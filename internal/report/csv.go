package report

import (
	"encoding/csv"
	"strings"

	"github.com/newthinker/tradecost/internal/aggregate"
)

// RenderCSV renders the matrix with one row per ranked symbol.
// Header: symbol,<dates...>,total. Missing cells are left empty.
func RenderCSV(m aggregate.Matrix, opts Options) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := make([]string, 0, len(m.Dates)+2)
	header = append(header, "symbol")
	for _, d := range m.Dates {
		header = append(header, d.String())
	}
	header = append(header, "total")
	// writes into a strings.Builder cannot fail
	_ = w.Write(header)

	row := make([]string, len(m.Dates)+2)
	for i, sym := range m.Symbols {
		row[0] = sym
		for j, c := range m.Cells[i] {
			row[j+1] = ""
			if c.Valid {
				row[j+1] = opts.Format(c.Value)
			}
		}
		row[len(row)-1] = opts.Format(rowTotal(m.Cells[i]))
		_ = w.Write(row)
	}

	w.Flush()
	return sb.String()
}
