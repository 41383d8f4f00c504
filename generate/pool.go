package generate

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exgen/common"
)

// Pool runs independent requests concurrently with bounded number of
// workers. Failure of one request does not cancel others.
type Pool struct {
	ctx context.Context
	gen *Generator
	eg  errgroup.Group

	mu      sync.Mutex
	next    int
	results map[int]*Result
	err     error
}

func NewPool(ctx context.Context, gen *Generator, workers int) *Pool {
	p := &Pool{ctx: ctx, gen: gen, results: make(map[int]*Result)}
	p.eg.SetLimit(max(workers, 1))
	return p
}

// Go submits request, it blocks while all workers are busy.
func (p *Pool) Go(req Request) {
	p.mu.Lock()
	idx := p.next
	p.next++
	p.mu.Unlock()

	p.eg.Go(func() error {
		res, err := p.run(req)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.results[idx] = res
		p.err = multierr.Append(p.err, err)
		return nil
	})
}

func (p *Pool) run(req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.gen.log.Error("Generation ended with panic", zap.Stringer("request", req.ID),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("generation panic: %v", r)
			res = &Result{ID: req.ID, Preset: req.Preset, Outcome: common.OutcomeFailed, Err: err}
		}
	}()
	res, err = p.gen.Generate(p.ctx, req)
	if err != nil {
		err = fmt.Errorf("request %s (%s): %w", req.ID, req.ContentPath, err)
	}
	return res, err
}

// Wait blocks until all submitted requests are done and returns their results
// in submission order together with combined error of failed ones.
func (p *Pool) Wait() ([]*Result, error) {
	_ = p.eg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Result, 0, len(p.results))
	for i := range p.next {
		if r, ok := p.results[i]; ok {
			out = append(out, r)
		}
	}
	return out, p.err
}
