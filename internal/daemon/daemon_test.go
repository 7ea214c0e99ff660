package daemon_test

import (
	"context"
	"errors"
	"testing"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/daemon"
	"reelsync/internal/media"
	"reelsync/internal/pipeline"
	"reelsync/internal/testsupport"
)

type nopProber struct{}

func (nopProber) Probe(context.Context, string) (media.Technical, error) {
	return media.Technical{VideoCodec: "h264", AudioCodec: "aac"}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	p, err := pipeline.New(cfg, store, nil, pipeline.WithProber(nopProber{}), pipeline.WithLooker(nil))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	d, err := daemon.New(cfg, store, nil, p)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.Pipeline.Running {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if status.CatalogPath != cfg.CatalogPath() || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected paths in status %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	held, err := daemon.LockHeld(cfg)
	if err != nil {
		t.Fatalf("LockHeld: %v", err)
	}
	if !held {
		t.Fatal("lock should be held while running")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	held, err = daemon.LockHeld(cfg)
	if err != nil {
		t.Fatalf("LockHeld: %v", err)
	}
	if held {
		t.Fatal("lock should be released after Stop")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestAcquireLockExcludesDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	unlock, err := daemon.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("daemon started while a scan held the lock: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start after unlock: %v", err)
	}
}
