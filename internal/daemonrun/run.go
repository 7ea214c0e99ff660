package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/daemon"
	"reelsync/internal/deps"
	"reelsync/internal/logging"
	"reelsync/internal/pipeline"
	"reelsync/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelsync daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, logPath, err := logging.ForRun(cfg, opts.LogLevel, opts.Development, time.Now())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := uuid.NewString()
	logger = logger.With(logging.String("session_id", sessionID))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelsync.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reelsync-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(signalCtx, logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	store, err := catalog.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open catalog", "catalog_open_failed",
			logging.Failure(err, "check data_dir permissions and that catalog.db is not from a newer schema")...,
		)
		return err
	}

	p, err := pipeline.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create pipeline: %w", err)
	}
	d, err := daemon.New(cfg, store, logger, p)
	if err != nil {
		p.Close()
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("reelsync daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "reelsync.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("tmdb_key_present", strings.TrimSpace(cfg.TMDB.APIKey) != ""),
		logging.Int("roots", len(cfg.Roots())),
	}
	statuses := deps.CheckBinaries(ctx, deps.Requirements(cfg))
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, missing.Description+"; affected files are skipped"),
			logging.String(logging.FieldErrorHint, "install it or set the path under [tools]"),
		)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, failed := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "the daemon starts anyway; affected roots scan as empty"),
			logging.String(logging.FieldErrorHint, "fix the path or permissions and restart"),
		)
	}
}
