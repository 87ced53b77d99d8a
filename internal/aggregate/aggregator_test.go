package aggregate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func at(date string, hour int) time.Time {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func TestGroupByDateSymbol_SumsSameKey(t *testing.T) {
	cells, err := GroupByDateSymbol([]core.Outcome{
		{Symbol: "A", EntryTime: at("2024-01-01", 9), Return: 5},
		{Symbol: "A", EntryTime: at("2024-01-01", 13), Return: -2},
	})
	require.NoError(t, err)

	assert.Equal(t, Cells{{Date: day("2024-01-01"), Symbol: "A"}: 3}, cells)
}

func TestGroupByDateSymbol_KeysByEntryDate(t *testing.T) {
	cells, err := GroupByDateSymbol([]core.Outcome{
		{Symbol: "A", EntryTime: at("2024-01-01", 23), Return: 1},
		{Symbol: "A", EntryTime: at("2024-01-02", 1), Return: 2},
		{Symbol: "B", EntryTime: at("2024-01-02", 10), Return: 4},
	})
	require.NoError(t, err)

	assert.Len(t, cells, 3)
	assert.Equal(t, 1.0, cells[Key{day("2024-01-01"), "A"}])
	assert.Equal(t, 2.0, cells[Key{day("2024-01-02"), "A"}])
	assert.Equal(t, 4.0, cells[Key{day("2024-01-02"), "B"}])
}

func TestGroupByDateSymbol_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		outcome core.Outcome
	}{
		{"missing symbol", core.Outcome{EntryTime: at("2024-01-01", 9), Return: 1}},
		{"zero timestamp", core.Outcome{Symbol: "A", Return: 1}},
		{"nan return", core.Outcome{Symbol: "A", EntryTime: at("2024-01-01", 9), Return: math.NaN()}},
		{"inf return", core.Outcome{Symbol: "A", EntryTime: at("2024-01-01", 9), Return: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := []core.Outcome{
				{Symbol: "OK", EntryTime: at("2024-01-01", 9), Return: 1},
				tt.outcome,
			}
			cells, err := GroupByDateSymbol(outcomes)
			assert.Nil(t, cells)
			require.ErrorIs(t, err, core.ErrInvalidInput)
			assert.Contains(t, err.Error(), "record 1")
		})
	}
}

func randomOutcomes(r *rand.Rand, n int) []core.Outcome {
	symbols := []string{"7203.T", "9984.T", "6758.T", "6857.T", "5803.T"}
	out := make([]core.Outcome, n)
	for i := range out {
		out[i] = core.Outcome{
			Symbol:    symbols[r.Intn(len(symbols))],
			EntryTime: at(fmt.Sprintf("2025-10-%02d", 1+r.Intn(10)), 9+r.Intn(6)),
			Return:    (r.Float64() - 0.5) * math.Pow(10, float64(r.Intn(8)-3)),
		}
	}
	return out
}

func TestGroupByDateSymbol_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	outcomes := randomOutcomes(r, 500)

	want, err := GroupByDateSymbol(outcomes)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		shuffled := append([]core.Outcome(nil), outcomes...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := GroupByDateSymbol(shuffled)
		require.NoError(t, err)
		require.Equal(t, len(want), len(got))
		for k, v := range want {
			assert.Equal(t, math.Float64bits(v), math.Float64bits(got[k]), "key %v", k)
		}
	}
}

func TestGroupParallel_MatchesSerial(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	outcomes := randomOutcomes(r, 2000)

	serial, err := GroupByDateSymbol(outcomes)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 2, 3, 8, 16} {
		got, err := GroupParallel(context.Background(), outcomes, workers)
		require.NoError(t, err, "workers=%d", workers)
		require.Equal(t, len(serial), len(got))
		for k, v := range serial {
			assert.Equal(t, math.Float64bits(v), math.Float64bits(got[k]), "workers=%d key %v", workers, k)
		}
	}
}

func TestGroupParallel_InvalidInput(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	outcomes := randomOutcomes(r, 100)
	outcomes[77].Return = math.NaN()

	_, err := GroupParallel(context.Background(), outcomes, 4)
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Contains(t, err.Error(), "record 77")
}

func TestGroupParallel_Cancelled(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	outcomes := randomOutcomes(r, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GroupParallel(ctx, outcomes, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTotalsBySymbol(t *testing.T) {
	cells := Cells{
		{day("2024-01-01"), "A"}: 3,
		{day("2024-01-02"), "A"}: -1,
		{day("2024-01-03"), "A"}: 0.5,
		{day("2024-01-02"), "B"}: 7,
	}

	totals := TotalsBySymbol(cells)
	assert.Equal(t, map[string]float64{"A": 2.5, "B": 7}, totals)
}

func TestRankSymbols(t *testing.T) {
	totals := map[string]float64{"C": 1, "A": 5, "B": 1, "D": -3, "E": 5}
	assert.Equal(t, []string{"A", "E", "B", "C", "D"}, RankSymbols(totals))
	assert.Empty(t, RankSymbols(nil))
}

func TestRankSymbols_ConsistentWithTotals(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	cells, err := GroupByDateSymbol(randomOutcomes(r, 300))
	require.NoError(t, err)

	totals := TotalsBySymbol(cells)
	ranked := RankSymbols(totals)
	require.Len(t, ranked, len(totals))

	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			assert.False(t, totals[ranked[j]] > totals[ranked[i]],
				"%s (%v) ranked after %s (%v)", ranked[j], totals[ranked[j]], ranked[i], totals[ranked[i]])
		}
	}
}

func TestDates(t *testing.T) {
	cells := Cells{
		{day("2024-01-03"), "A"}: 1,
		{day("2024-01-01"), "B"}: 1,
		{day("2024-01-03"), "B"}: 1,
		{day("2023-12-29"), "A"}: 1,
	}
	assert.Equal(t, []core.Date{day("2023-12-29"), day("2024-01-01"), day("2024-01-03")}, Dates(cells))
}

func TestBuild(t *testing.T) {
	summary, err := Build([]core.Outcome{
		{Symbol: "A", EntryTime: at("2024-01-01", 9), Return: 5},
		{Symbol: "A", EntryTime: at("2024-01-02", 9), Return: 1},
		{Symbol: "A", EntryTime: at("2024-01-02", 10), Return: -1},
		{Symbol: "B", EntryTime: at("2024-01-01", 9), Return: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, summary.Ranking)
	assert.Equal(t, []core.Date{day("2024-01-01"), day("2024-01-02")}, summary.Dates)
	assert.Equal(t, 5.0, summary.Totals["A"])

	zero, ok := summary.Matrix.At("A", day("2024-01-02"))
	require.True(t, ok)
	assert.Equal(t, Cell{Value: 0, Valid: true}, zero)

	missing, ok := summary.Matrix.At("B", day("2024-01-02"))
	require.True(t, ok)
	assert.True(t, missing.Missing())
	assert.NotEqual(t, zero, missing)
}

func TestBuildParallel(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	outcomes := randomOutcomes(r, 400)

	serial, err := Build(outcomes)
	require.NoError(t, err)
	parallel, err := BuildParallel(context.Background(), outcomes, 4)
	require.NoError(t, err)

	assert.Equal(t, serial.Ranking, parallel.Ranking)
	assert.Equal(t, serial.Matrix, parallel.Matrix)
}
