package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool_Workers(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-5, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		p := NewPool(tt.n)
		if got := p.Workers(); got != tt.want {
			t.Errorf("NewPool(%d).Workers() = %d, want %d", tt.n, got, tt.want)
		}
		p.Close()
	}
}

func TestPool_Run(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	p.Run(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestPool_RunEmpty(t *testing.T) {
	p := NewPool(2)
	defer p.Close()
	p.Run(nil)
}

func TestPool_RunAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()

	ran := 0
	p.Run([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran = %d after Close, want 2", ran)
	}
}

func TestPool_Rows(t *testing.T) {
	tests := []struct {
		workers, height int
	}{
		{4, 100},
		{4, 3},
		{3, 10},
		{8, 1},
		{1, 7},
	}
	for _, tt := range tests {
		p := NewPool(tt.workers)
		var mu sync.Mutex
		seen := make([]int, tt.height)
		p.Rows(tt.height, func(y0, y1 int) {
			mu.Lock()
			defer mu.Unlock()
			for y := y0; y < y1; y++ {
				seen[y]++
			}
		})
		p.Close()
		for y, n := range seen {
			if n != 1 {
				t.Errorf("workers=%d height=%d: row %d visited %d times", tt.workers, tt.height, y, n)
			}
		}
	}
}

func TestPool_RowsZeroHeight(t *testing.T) {
	p := NewPool(2)
	defer p.Close()
	p.Rows(0, func(int, int) { t.Error("fn called for zero height") })
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var total atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Rows(50, func(y0, y1 int) { total.Add(int64(y1 - y0)) })
		}()
	}
	wg.Wait()
	if got := total.Load(); got != 8*50 {
		t.Errorf("total rows = %d, want %d", got, 8*50)
	}
}

func TestPool_RunRacingClose(t *testing.T) {
	for range 200 {
		p := NewPool(2)
		var counter atomic.Int64
		work := make([]func(), 64)
		for i := range work {
			work[i] = func() { counter.Add(1) }
		}

		finished := make(chan struct{})
		go func() {
			p.Run(work)
			close(finished)
		}()
		p.Close()

		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after a concurrent Close")
		}
		if got := counter.Load(); got != int64(len(work)) {
			t.Fatalf("counter = %d, want %d", got, len(work))
		}
	}
}
