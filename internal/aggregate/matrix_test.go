package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDenseMatrix_MissingVersusZero(t *testing.T) {
	d1, d2 := day("2024-01-01"), day("2024-01-02")
	cells := Cells{
		{d1, "A"}: 4,
		{d2, "A"}: 0,
		{d1, "B"}: -1,
	}

	m := ToDenseMatrix(cells, []string{"A", "B"}, []core.Date{d1, d2})

	require.Len(t, m.Cells, 2)
	assert.Equal(t, []Cell{{4, true}, {0, true}}, m.Cells[0])
	assert.Equal(t, []Cell{{-1, true}, {}}, m.Cells[1])

	assert.True(t, m.Cells[1][1].Missing())
	assert.False(t, m.Cells[0][1].Missing())
	assert.NotEqual(t, m.Cells[0][1], m.Cells[1][1])
	assert.Equal(t, 1, m.Missing())
}

func TestToDenseMatrix_RowOrderFollowsRanking(t *testing.T) {
	d := day("2024-01-01")
	cells := Cells{{d, "A"}: 1, {d, "B"}: 2}

	m := ToDenseMatrix(cells, []string{"B", "A"}, []core.Date{d})
	assert.Equal(t, []string{"B", "A"}, m.Symbols)
	assert.Equal(t, 2.0, m.Cells[0][0].Value)
	assert.Equal(t, 1.0, m.Cells[1][0].Value)
}

func TestMatrix_At(t *testing.T) {
	d := day("2024-01-01")
	m := ToDenseMatrix(Cells{{d, "A"}: 1}, []string{"A"}, []core.Date{d})

	_, ok := m.At("Z", d)
	assert.False(t, ok)
	_, ok = m.At("A", day("2030-01-01"))
	assert.False(t, ok)
}

func TestCell_JSON(t *testing.T) {
	b, err := json.Marshal([]Cell{{Value: 1.5, Valid: true}, {}, {Value: 0, Valid: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, 0]`, string(b))

	var back []Cell
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []Cell{{1.5, true}, {}, {0, true}}, back)
}

func TestMatrix_JSON(t *testing.T) {
	d := day("2024-01-02")
	m := ToDenseMatrix(Cells{{d, "A"}: 2}, []string{"A", "B"}, []core.Date{d})

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbols":["A","B"],"dates":["2024-01-02"],"cells":[[2],[null]]}`, string(b))
}
