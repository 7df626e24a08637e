// Package async runs a fixed batch of named tasks over a bounded worker
// pool and collects their results.
package async

import (
	"context"
	"sync"
)

// Task is a named unit of work.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result pairs a task's name with its outcome.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool bounds how many tasks run at once.
type Pool struct {
	workerCount int
}

// NewPool returns a pool running at most workerCount tasks concurrently.
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs the batch and returns results keyed by task name. When the
// context is cancelled, queued tasks are skipped and whatever finished so
// far is returned; tasks already running are not interrupted.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	results := make(map[string]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, p.workerCount)
	)

	for _, task := range tasks {
		if ctx.Err() != nil {
			wg.Wait()
			return results
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := task.Execute()

			mu.Lock()
			results[task.Name] = Result{Name: task.Name, Data: data, Err: err}
			mu.Unlock()
		}(task)
	}

	wg.Wait()
	return results
}
