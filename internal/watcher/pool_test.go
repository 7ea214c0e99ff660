package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSerializesSameKey(t *testing.T) {
	pool := NewPool(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Close()

	var (
		mu    sync.Mutex
		order []int
		inKey atomic.Int32
		overl atomic.Bool
	)
	for i := range 5 {
		if err := pool.Submit("same", func(context.Context) {
			if inKey.Add(1) > 1 {
				overl.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			inKey.Add(-1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := pool.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if overl.Load() {
		t.Fatal("tasks sharing a key ran concurrently")
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("same-key tasks out of order: %v", order)
		}
	}
}

func TestPoolRunsDifferentKeysInParallel(t *testing.T) {
	pool := NewPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Close()

	release := make(chan struct{})
	started := make(chan string, 2)
	for _, key := range []string{"a", "b"} {
		if err := pool.Submit(key, func(context.Context) {
			started <- key
			<-release
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("independent keys did not run in parallel")
		}
	}
	close(release)
}

func TestPoolRejectsWhenFull(t *testing.T) {
	pool := NewPool(1, 2)
	noop := func(context.Context) {}
	if err := pool.Submit("a", noop); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := pool.Submit("b", noop); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := pool.Submit("c", noop); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	if pool.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", pool.Pending())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	if err := pool.SubmitWait(ctx, "c", noop); err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	pool.Close()
	if pool.Pending() != 0 {
		t.Fatalf("Close must drain queued tasks, %d left", pool.Pending())
	}
	if err := pool.Submit("d", noop); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestKeyLocksReleaseEntries(t *testing.T) {
	locks := newKeyLocks()
	unlock := locks.lock("fp")

	acquired := make(chan struct{})
	go func() {
		release := locks.lock("fp")
		close(acquired)
		release()
	}()
	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the key")
	}

	deadline := time.Now().Add(time.Second)
	for {
		locks.mu.Lock()
		n := len(locks.locks)
		locks.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("unused lock entries not released: %d", n)
		}
		time.Sleep(time.Millisecond)
	}
}
