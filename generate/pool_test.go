package generate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"exgen/assemble"
	"exgen/common"
	"exgen/layers"
)

func TestPool(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	g := f.generator(t, nil, Options{})
	out := t.TempDir()

	pool := NewPool(context.Background(), g, 3)
	var ids []string
	for i := range 8 {
		preset := "exam.json"
		if i == 5 {
			preset = "nope.json"
		}
		req := NewRequest(sampleDoc(), fmt.Sprintf("exam%d.json", i), preset)
		req.OutputDir = out
		ids = append(ids, req.ID.String())
		pool.Go(req)
	}
	results, err := pool.Wait()
	if !errors.Is(err, layers.ErrPresetNotFound) {
		t.Errorf("Wait() error = %v, want ErrPresetNotFound", err)
	}
	if len(results) != 8 {
		t.Fatalf("Wait() returned %d results, want 8", len(results))
	}
	for i, r := range results {
		if r.ID.String() != ids[i] {
			t.Errorf("result %d is for request %s, want %s", i, r.ID, ids[i])
		}
		want := common.OutcomeSuccess
		if i == 5 {
			want = common.OutcomeFailed
		}
		if r.Outcome != want {
			t.Errorf("result %d outcome = %s, want %s", i, r.Outcome, want)
		}
	}

	// every request got its own files
	seen := make(map[string]bool)
	for _, r := range results {
		for _, p := range r.Paths() {
			if seen[p] {
				t.Errorf("output %s produced twice", p)
			}
			seen[p] = true
			if filepath.Dir(p) != out {
				t.Errorf("output %s outside of %s", p, out)
			}
		}
	}
	if len(seen) != 14 {
		t.Errorf("got %d documents, want 14", len(seen))
	}
}

// countingSurface fails on purpose and tracks concurrent opens.
type countingSurface struct {
	active, peak atomic.Int32
	release      chan struct{}
}

func (s *countingSurface) Open(context.Context, string) (assemble.Session, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-s.release
	return nil, errors.New("not available")
}

func TestPoolLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	surface := &countingSurface{release: make(chan struct{})}
	g := f.generator(t, surface, Options{})
	out := t.TempDir()

	pool := NewPool(context.Background(), g, 2)
	go func() {
		// unblock sessions one by one while requests are still submitted
		for range 6 {
			surface.release <- struct{}{}
		}
	}()
	for i := range 6 {
		req := NewRequest(sampleDoc(), fmt.Sprintf("exam%d.json", i), "")
		req.OutputDir = out
		req.Sheets = []common.Sheet{common.SheetQuestion}
		pool.Go(req)
	}
	results, err := pool.Wait()
	if !errors.Is(err, assemble.ErrSurfaceUnavailable) {
		t.Errorf("Wait() error = %v, want ErrSurfaceUnavailable", err)
	}
	if len(results) != 6 {
		t.Errorf("Wait() returned %d results, want 6", len(results))
	}
	if peak := surface.peak.Load(); peak > 2 {
		t.Errorf("%d requests ran at once, limit is 2", peak)
	}
}

type panickingSurface struct{}

func (panickingSurface) Open(context.Context, string) (assemble.Session, error) {
	panic("surface exploded")
}

func TestPoolPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	pool := NewPool(context.Background(), f.generator(t, panickingSurface{}, Options{}), 1)
	req := NewRequest(sampleDoc(), "exam.json", "")
	req.OutputDir = t.TempDir()
	pool.Go(req)

	results, err := pool.Wait()
	if err == nil {
		t.Fatal("Wait() error = nil, want panic reported")
	}
	if len(results) != 1 || results[0].Outcome != common.OutcomeFailed {
		t.Errorf("Wait() results = %+v", results)
	}
}
