package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestRunTasksKeepsOrderAndErrors(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			tasks := make([]func(context.Context) (int, error), 6)
			for i := range tasks {
				tasks[i] = func(context.Context) (int, error) {
					if i == 2 {
						return 0, errors.New("boom")
					}
					time.Sleep(time.Duration(6-i) * time.Millisecond)
					return i * i, nil
				}
			}

			results := RunTasks(context.Background(), workers, 0, tasks)
			require.Len(t, results, 6)
			for i, r := range results {
				if i == 2 {
					assert.Error(t, r.Err)
					continue
				}
				require.NoError(t, r.Err)
				assert.Equal(t, i*i, r.Value)
			}
		})
	}
}

func TestRunTasksBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	tasks := make([]func(context.Context) (struct{}, error), 12)
	for i := range tasks {
		tasks[i] = func(context.Context) (struct{}, error) {
			n := running.Inc()
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Dec()
			return struct{}{}, nil
		}
	}

	RunTasks(context.Background(), 3, 0, tasks)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.GreaterOrEqual(t, peak.Load(), int64(1))
}

func TestRunTasksDeadlinePerTask(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			tasks := []func(context.Context) (int, error){
				func(ctx context.Context) (int, error) {
					<-ctx.Done()
					return 0, ctx.Err()
				},
				func(ctx context.Context) (int, error) {
					if err := ctx.Err(); err != nil {
						return 0, err
					}
					return 7, nil
				},
			}

			start := time.Now()
			results := RunTasks(context.Background(), workers, 20*time.Millisecond, tasks)
			assert.Less(t, time.Since(start), 2*time.Second)

			require.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
			require.NoError(t, results[1].Err)
			assert.Equal(t, 7, results[1].Value)
		})
	}
}

func TestStrategyByName(t *testing.T) {
	seq := StrategyByName("sequential", 4, 4)
	assert.Equal(t, SequentialStrategy(), seq)
	assert.False(t, seq.Overlap)

	par := StrategyByName("parallel", 0, 5)
	assert.Equal(t, "parallel", par.Name)
	assert.Equal(t, 3, par.BuildWorkers)
	assert.Equal(t, 5, par.ScoreWorkers)
	assert.True(t, par.Overlap)
}
