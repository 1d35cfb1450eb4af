/*
Package genai contains the boundary to the external text-generation backend.

This file defines the Pool, a bounded worker pool that runs blocking generation
calls off the connection-handling goroutines. Each submission returns a
single-use result channel (a future); only the submitting connection's
processing waits on it, so one slow backend call never stalls admission,
teardown, or message intake on other connections.
*/
package genai

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

const jobQueueBuffer = 64

// Generator is the blocking call executed by pool workers. *Bridge satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the tagged outcome of one generation call: either Text or Err is set.
type Result struct {
	Text string
	Err  error
}

type job struct {
	ctx    context.Context
	prompt string
	result chan Result
}

// Pool runs generation calls on a fixed number of worker goroutines.
type Pool struct {
	generator Generator
	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewPool starts a pool with the given number of workers, all invoking generator.
func NewPool(generator Generator, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		generator: generator,
		jobs:      make(chan job, jobQueueBuffer),
		logger:    logx.Logger().With().Str("component", "GenerationPool").Logger(),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.runWorker(i)
	}

	return p
}

// Submit queues a generation call and returns the channel its Result will be
// delivered on. The channel is buffered, so a caller that goes away before the
// call finishes does not block the worker.
func (p *Pool) Submit(ctx context.Context, prompt string) <-chan Result {
	result := make(chan Result, 1)

	j := job{ctx: ctx, prompt: prompt, result: result}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		result <- Result{Err: ctx.Err()}
	}

	return result
}

// runWorker is the blocking loop of a single worker goroutine.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.result <- Result{Err: err}
			continue
		}

		text, err := p.generator.Generate(j.ctx, j.prompt)
		if err != nil {
			p.logger.Warn().Int("worker", id).Err(err).Msg("Generation call failed")
		}

		j.result <- Result{Text: text, Err: err}
	}
}

// Shutdown stops accepting new work and waits for in-flight calls to finish.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()

	p.logger.Info().Msg("Generation pool shutdown complete.")
}
