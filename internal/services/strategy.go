package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result carries the outcome of one task in a batch.
type Result[T any] struct {
	Value T
	Err   error
}

// Strategy decides how the orchestrator runs its batches. Both strategies
// run identical algorithms with identical cache keys; only the degree of
// concurrency differs.
type Strategy struct {
	Name         string
	BuildWorkers int
	ScoreWorkers int
	// Overlap resolves endpoints concurrently with extraction when they do
	// not depend on it.
	Overlap bool
}

func ParallelStrategy(buildWorkers, scoreWorkers int) Strategy {
	if buildWorkers <= 0 {
		buildWorkers = 3
	}
	if scoreWorkers <= 0 {
		scoreWorkers = 2
	}
	return Strategy{Name: "parallel", BuildWorkers: buildWorkers, ScoreWorkers: scoreWorkers, Overlap: true}
}

func SequentialStrategy() Strategy {
	return Strategy{Name: "sequential", BuildWorkers: 1, ScoreWorkers: 1}
}

// StrategyByName maps "sequential" to SequentialStrategy and anything else
// to ParallelStrategy.
func StrategyByName(name string, buildWorkers, scoreWorkers int) Strategy {
	if name == "sequential" {
		return SequentialStrategy()
	}
	return ParallelStrategy(buildWorkers, scoreWorkers)
}

// RunTasks runs every task and returns their results in task order. At most
// workers tasks run at once; with workers <= 1 or a single task they run
// sequentially on the calling goroutine. Each task gets its own deadline of
// timeout (none when timeout <= 0), so a hung task fails alone. A failing
// task never cancels the others.
func RunTasks[T any](ctx context.Context, workers int, timeout time.Duration, tasks []func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(tasks))

	run := func(i int) {
		tctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		v, err := tasks[i](tctx)
		results[i] = Result[T]{Value: v, Err: err}
	}

	if workers <= 1 || len(tasks) <= 1 {
		for i := range tasks {
			run(i)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range tasks {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
