package aggregate

import (
	"encoding/json"

	"github.com/newthinker/tradecost/internal/core"
)

// Cell is one matrix entry. Valid is false when no trade contributed,
// which is distinct from a valid cell whose trades net to zero.
type Cell struct {
	Value float64
	Valid bool
}

// Missing reports whether no trade contributed to the cell
func (c Cell) Missing() bool {
	return !c.Valid
}

// MarshalJSON renders missing cells as null
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON reads null as a missing cell
func (c *Cell) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Cell{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = Cell{Value: v, Valid: true}
	return nil
}

// Matrix is a dense symbol x date grid. Rows follow Symbols, columns follow Dates.
type Matrix struct {
	Symbols []string    `json:"symbols"`
	Dates   []core.Date `json:"dates"`
	Cells   [][]Cell    `json:"cells"`
}

// ToDenseMatrix lays cells out with one row per ranked symbol and one column per date
func ToDenseMatrix(cells Cells, ranked []string, dates []core.Date) Matrix {
	grid := make([][]Cell, len(ranked))
	for i, sym := range ranked {
		row := make([]Cell, len(dates))
		for j, d := range dates {
			if v, ok := cells[Key{Date: d, Symbol: sym}]; ok {
				row[j] = Cell{Value: v, Valid: true}
			}
		}
		grid[i] = row
	}

	return Matrix{
		Symbols: append([]string(nil), ranked...),
		Dates:   append([]core.Date(nil), dates...),
		Cells:   grid,
	}
}

// At returns the cell for symbol on date. ok is false if either is not part of the matrix.
func (m Matrix) At(symbol string, date core.Date) (Cell, bool) {
	for i, s := range m.Symbols {
		if s != symbol {
			continue
		}
		for j, d := range m.Dates {
			if d == date {
				return m.Cells[i][j], true
			}
		}
		return Cell{}, false
	}
	return Cell{}, false
}

// Missing counts cells without any contributing trade
func (m Matrix) Missing() int {
	var n int
	for _, row := range m.Cells {
		for _, c := range row {
			if !c.Valid {
				n++
			}
		}
	}
	return n
}
