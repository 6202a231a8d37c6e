// Package extsort implements an external (out-of-core) merge sort engine:
// producers push batches of fixed-width records, the engine sorts and
// stages them to disk as run files, progressively merges runs on disk,
// and finally streams the single collapsed run back to the caller. The
// pipeline runs concurrently with producers: a background manager
// goroutine ingests pushed batches off a lock-free queue, sorts and pairs
// them onto level-0 run files, and opportunistically merges the run set up
// the levels as it goes.
package extsort

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/entreya/extsort/internal/manager"
	"github.com/entreya/extsort/internal/queue"
	"github.com/entreya/extsort/internal/record"
	"github.com/entreya/extsort/internal/runfile"
)

// ErrFinished is returned by Push once Finish has been called.
var ErrFinished = errors.New("extsort: engine already finished")

// ErrNotFinished is returned by Execute and ExportCompressed before Finish
// has produced a final run.
var ErrNotFinished = errors.New("extsort: engine has not finished sorting")

// Config configures a new Engine.
type Config struct {
	// Threads is a concurrency hint sizing the ingestion queue; it is not
	// enforced as a hard cap on producer goroutines.
	Threads int
	// MaxMem is an advisory memory ceiling in bytes. Not enforced: callers
	// size their own pushed batches.
	MaxMem int64
	// WorkDir holds run files for the lifetime of the Engine; created
	// recursively if absent.
	WorkDir string
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// TickInterval overrides the manager's idle-tick sleep. Defaults to
	// manager.DefaultTickInterval.
	TickInterval time.Duration
	// MaxRetries bounds consecutive recoverable I/O failures in a single
	// pipeline stage before Finish surfaces a wrapped error.
	MaxRetries int
}

// Engine drives one external sort: push batches, then Finish once, then
// Execute (and optionally ExportCompressed). A second Finish returns
// ErrFinished; Execute and ExportCompressed may be called again after Finish.
type Engine[K any] struct {
	codec   record.Codec[K]
	workDir string
	logger  *slog.Logger

	ingestion *queue.Ingestion[K]
	mgr       *manager.Manager[K]

	finished  bool
	finalPath string
}

// New constructs an Engine. codec and less describe the caller's record
// type; cfg.WorkDir is created if it does not already exist.
func New[K any](codec record.Codec[K], less record.Less[K], cfg Config) (*Engine[K], error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("extsort: Config.WorkDir is required")
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("extsort: create workdir: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ingestion := queue.New[K](cfg.Threads)
	mgr := manager.New[K](manager.Config[K]{
		Ingestion:    ingestion,
		Codec:        codec,
		Less:         less,
		WorkDir:      cfg.WorkDir,
		Logger:       logger,
		TickInterval: cfg.TickInterval,
		MaxRetries:   cfg.MaxRetries,
	})

	e := &Engine[K]{
		codec:     codec,
		workDir:   cfg.WorkDir,
		logger:    logger,
		ingestion: ingestion,
		mgr:       mgr,
	}
	go mgr.Run()
	return e, nil
}

// Push hands batch to the manager, copying it into a freshly owned
// buffer. The caller's slice may be reused or discarded immediately
// after Push returns. Push blocks (briefly, spin-then-sleep) under
// backpressure if the ingestion queue is full, and returns ctx.Err() if
// ctx is canceled first.
func (e *Engine[K]) Push(ctx context.Context, batch []K) error {
	if e.finished {
		return ErrFinished
	}
	if len(batch) == 0 {
		return nil
	}
	return e.ingestion.Push(ctx, batch, 0, len(batch))
}

// Finish stops accepting new work, drains every in-flight batch and run
// file down to a single sorted run, and returns that run's path. After
// Finish returns successfully, call Execute to stream the result.
func (e *Engine[K]) Finish(ctx context.Context) (string, error) {
	if e.finished {
		return "", ErrFinished
	}
	e.finished = true

	path, err := e.mgr.Finish(ctx)
	if err != nil {
		return "", fmt.Errorf("extsort: finish: %w", err)
	}
	e.finalPath = path
	e.logger.Info("sort finished", "path", path)
	return path, nil
}

// Execute streams the final run in order to consumer, one record at a
// time. Must be called after Finish.
func (e *Engine[K]) Execute(ctx context.Context, consumer func(K) error) error {
	if e.finalPath == "" {
		return ErrNotFinished
	}

	fr, err := runfile.OpenFinal[K](e.finalPath, e.codec)
	if err != nil {
		return fmt.Errorf("extsort: execute: %w", err)
	}
	defer fr.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := fr.HasMore()
		if err != nil {
			return fmt.Errorf("extsort: execute: %w", err)
		}
		if !more {
			return nil
		}
		if err := consumer(fr.Current()); err != nil {
			return err
		}
		fr.Advance()
	}
}

// ExportCompressed archives the already-collapsed final run to dstPath as
// an lz4-compressed file, outside the workdir. This is post-Finish
// export/archival of a run that is no longer being spilled to or merged,
// not compression of a spilled run, and is an additive convenience beyond
// the core pipeline. Must be called after Finish.
func (e *Engine[K]) ExportCompressed(ctx context.Context, dstPath string) error {
	if e.finalPath == "" {
		return ErrNotFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(e.finalPath)
	if err != nil {
		return fmt.Errorf("extsort: export: open final run: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("extsort: export: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("extsort: export: create: %w", err)
	}

	zw := lz4.NewWriter(dst)
	br := bufio.NewReaderSize(src, 256*1024)

	if _, err := io.Copy(zw, br); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		return fmt.Errorf("extsort: export: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("extsort: export: close writer: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("extsort: export: close file: %w", err)
	}

	e.logger.Info("exported compressed final run", "src", e.finalPath, "dst", dstPath)
	return nil
}
