package executor

import (
	"context"
	"sync"

	"foreman/task"
)

// Strategy controls how a batch of claimed tasks is dispatched. Dispatch
// must not return until every task in the batch has been run.
type Strategy interface {
	Dispatch(ctx context.Context, tasks []*task.Task, run func(ctx context.Context, t *task.Task))
}

// Serial runs the batch one task at a time in claim order.
type Serial struct{}

func (Serial) Dispatch(ctx context.Context, tasks []*task.Task, run func(ctx context.Context, t *task.Task)) {
	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		run(ctx, t)
	}
}

// Pool runs the batch on a bounded set of workers. Tasks in the same batch
// have no dependency relation, so order within the batch is irrelevant.
type Pool struct {
	Workers int
}

func (p Pool) Dispatch(ctx context.Context, tasks []*task.Task, run func(ctx context.Context, t *task.Task)) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan *task.Task)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range queue {
				if ctx.Err() != nil {
					continue
				}
				run(ctx, t)
			}
		}()
	}
	for _, t := range tasks {
		queue <- t
	}
	close(queue)
	wg.Wait()
}
