package aggregate

import (
	"context"
	"runtime"

	"github.com/newthinker/tradecost/internal/core"
	"golang.org/x/sync/errgroup"
)

// GroupParallel is GroupByDateSymbol split across workers.
// Partitions return raw value lists rather than partial sums and the merge
// sums with the same Sum, so the result matches the serial path exactly.
func GroupParallel(ctx context.Context, outcomes []core.Outcome, workers int) (Cells, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(outcomes) < 2*workers {
		return GroupByDateSymbol(outcomes)
	}

	chunk := (len(outcomes) + workers - 1) / workers
	partials := make([]map[Key][]float64, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= len(outcomes) {
			break
		}
		end := min(start+chunk, len(outcomes))

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := collect(outcomes[start:end], start)
			if err != nil {
				return err
			}
			partials[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[Key][]float64)
	for _, part := range partials {
		for k, values := range part {
			merged[k] = append(merged[k], values...)
		}
	}
	return reduce(merged), nil
}

// BuildParallel is Build using GroupParallel for the grouping step
func BuildParallel(ctx context.Context, outcomes []core.Outcome, workers int) (*Summary, error) {
	cells, err := GroupParallel(ctx, outcomes, workers)
	if err != nil {
		return nil, err
	}
	return summarize(cells), nil
}
