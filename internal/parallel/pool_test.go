package parallel

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS %d", n, pool.Workers(), runtime.GOMAXPROCS(0))
		}
		pool.Close()
	}
}

func TestWorkerPool_RunGroupsRunsEachGroupOnce(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	const groups = 1000
	counts := make([]atomic.Int32, groups)
	if err := pool.RunGroups(groups, func(g int) { counts[g].Add(1) }); err != nil {
		t.Fatalf("RunGroups() error = %v", err)
	}
	for g := range counts {
		if c := counts[g].Load(); c != 1 {
			t.Errorf("group %d ran %d times, want 1", g, c)
		}
	}
}

func TestWorkerPool_RunGroupsWaits(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var done atomic.Int64
	_ = pool.RunGroups(64, func(int) {
		runtime.Gosched()
		done.Add(1)
	})
	if got := done.Load(); got != 64 {
		t.Errorf("RunGroups returned with %d of 64 groups complete", got)
	}
}

func TestWorkerPool_RunGroupsEmpty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	for _, n := range []int{0, -1} {
		if err := pool.RunGroups(n, func(int) { called = true }); err != nil {
			t.Errorf("RunGroups(%d) error = %v", n, err)
		}
	}
	if called {
		t.Error("RunGroups with no groups invoked fn")
	}
}

func TestWorkerPool_SingleWorker(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	var sum atomic.Int64
	_ = pool.RunGroups(100, func(g int) { sum.Add(int64(g)) })
	if got := sum.Load(); got != 4950 {
		t.Errorf("sum = %d, want 4950", got)
	}
}

func TestWorkerPool_Close(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
	if err := pool.RunGroups(4, func(int) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("RunGroups() after Close error = %v, want ErrPoolClosed", err)
	}
}

func BenchmarkWorkerPool_RunGroups(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	for b.Loop() {
		_ = pool.RunGroups(256, func(int) {})
	}
}
