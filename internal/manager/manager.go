// Package manager drives the single-threaded pipeline that turns pushed
// batches into a fully collapsed sorted run: ingest, in-memory sort, pair
// onto level-0 run files, and opportunistically merge the run set up the
// levels.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/entreya/extsort/internal/merge"
	"github.com/entreya/extsort/internal/queue"
	"github.com/entreya/extsort/internal/record"
	"github.com/entreya/extsort/internal/runfile"
	"github.com/entreya/extsort/internal/runset"
)

// DefaultTickInterval is the manager's idle sleep when a tick did no work.
const DefaultTickInterval = time.Millisecond

// DefaultMaxRetries bounds consecutive recoverable I/O failures in a
// single stage before the manager gives up and surfaces a wrapped error
// instead of retrying forever.
const DefaultMaxRetries = 8

// Config bundles the manager's dependencies and tunables.
type Config[K any] struct {
	Ingestion    *queue.Ingestion[K]
	Codec        record.Codec[K]
	Less         record.Less[K]
	WorkDir      string
	Logger       *slog.Logger
	TickInterval time.Duration
	MaxRetries   int
}

// Manager owns the pairing queue, the run set, and the sequence counter.
// Run and Finish are the only entry points; all other state is private to
// the single goroutine that owns it at any given time.
type Manager[K any] struct {
	ingestion    *queue.Ingestion[K]
	codec        record.Codec[K]
	less         record.Less[K]
	workDir      string
	logger       *slog.Logger
	tickInterval time.Duration
	maxRetries   int

	pairing [][]K
	runs    runset.Set
	nextSeq uint32

	pairFailures  int
	mergeFailures int

	stop    chan struct{}
	stopped chan struct{}
}

// New constructs a Manager ready for Run.
func New[K any](cfg Config[K]) *Manager[K] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Manager[K]{
		ingestion:    cfg.Ingestion,
		codec:        cfg.Codec,
		less:         cfg.Less,
		workDir:      cfg.WorkDir,
		logger:       logger,
		tickInterval: tick,
		maxRetries:   maxRetries,
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Run drives the manager loop: ingest one, pair-merge if possible, drain
// the leveled merge stage to a fixpoint, sleep only if the tick did
// nothing. Intended to run in its own goroutine until Stop is called.
func (m *Manager[K]) Run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		did, err := m.tick()
		if err != nil {
			m.logger.Warn("manager tick failed", "error", err)
		}
		if !did {
			time.Sleep(m.tickInterval)
		}
	}
}

// Stop signals the loop to exit and blocks until it has, handing sole
// ownership of the pairing queue and run set back to the caller.
func (m *Manager[K]) Stop() {
	close(m.stop)
	<-m.stopped
}

func (m *Manager[K]) tick() (bool, error) {
	did := false

	if b, ok := m.ingestion.TryPop(); ok {
		m.sortAndQueue(b.Records)
		did = true
	}

	if len(m.pairing) >= 2 {
		if err := m.pairMergeToLevel0(); err != nil {
			return did, err
		}
		did = true
	}

	for {
		merged, err := m.leveledMergeStep()
		if err != nil {
			return did, err
		}
		if !merged {
			break
		}
		did = true
	}

	return did, nil
}

func (m *Manager[K]) sortAndQueue(batch []K) {
	slices.SortFunc(batch, func(a, b K) int {
		switch {
		case m.less(a, b):
			return -1
		case m.less(b, a):
			return 1
		default:
			return 0
		}
	})
	m.pairing = append(m.pairing, batch)
}

func (m *Manager[K]) takeNextSeq() uint32 {
	s := m.nextSeq
	m.nextSeq++
	return s
}

// pairMergeToLevel0 pops the two oldest sorted in-memory batches and
// merge-writes them into a fresh level-0 run file.
func (m *Manager[K]) pairMergeToLevel0() error {
	a, b := m.pairing[0], m.pairing[1]

	id := runfile.ID{Seq: m.takeNextSeq(), Level: 0}
	w, err := runfile.Create[K](m.workDir, id, m.codec)
	if err != nil {
		m.pairFailures++
		if m.pairFailures > m.maxRetries {
			return fmt.Errorf("manager: pairing stage: %w", err)
		}
		m.logger.Warn("pairing stage create failed, will retry", "error", err)
		return nil
	}
	m.pairing = m.pairing[2:]
	m.pairFailures = 0

	left := merge.NewSliceSource(a)
	right := merge.NewSliceSource(b)
	if err := merge.Two[K](left, right, w, m.less); err != nil {
		_ = w.Close()
		return fmt.Errorf("manager: pairing stage merge: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("manager: pairing stage close: %w", err)
	}
	m.runs.Insert(id)
	return nil
}

// leveledMergeStep merges the two smallest run files if their levels
// match, producing one run a level higher. Reports whether a merge ran.
func (m *Manager[K]) leveledMergeStep() (bool, error) {
	first, second, ok := m.runs.Smallest()
	if !ok || first.Level != second.Level {
		return false, nil
	}
	return true, m.mergeTwoRuns(first, second, false)
}

// mergeTwoRuns merges a and b (the current two smallest members of the
// run set) into a new run file. When force is false (the opportunistic
// leveled-merge path) a and b are known to share a level and the new
// level is one higher; when force is true (the final drain) the new
// level is max(a.Level, b.Level), plus one if the levels were equal.
func (m *Manager[K]) mergeTwoRuns(a, b runfile.ID, force bool) error {
	if _, _, ok := m.runs.PopTwoSmallest(); !ok {
		return nil
	}

	newLevel := a.Level + 1
	if force {
		newLevel = b.Level
		if a.Level == b.Level {
			newLevel++
		}
	}

	lr, err := runfile.Open[K](m.workDir, a, m.codec)
	if err != nil {
		return m.retryMerge(a, b, err)
	}
	rr, err := runfile.Open[K](m.workDir, b, m.codec)
	if err != nil {
		_ = lr.Close()
		return m.retryMerge(a, b, err)
	}

	newID := runfile.ID{Seq: m.takeNextSeq(), Level: newLevel}
	w, err := runfile.Create[K](m.workDir, newID, m.codec)
	if err != nil {
		_ = lr.Close()
		_ = rr.Close()
		return m.retryMerge(a, b, err)
	}

	mergeErr := merge.Two[K](lr, rr, w, m.less)
	_ = lr.Close()
	_ = rr.Close()
	closeErr := w.Close()
	if mergeErr != nil {
		_ = runfile.Remove(m.workDir, newID)
		return fmt.Errorf("manager: leveled merge: %w", mergeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("manager: leveled merge close: %w", closeErr)
	}

	if err := runfile.Remove(m.workDir, a); err != nil {
		m.logger.Warn("failed to remove merged run", "id", a, "error", err)
	}
	if err := runfile.Remove(m.workDir, b); err != nil {
		m.logger.Warn("failed to remove merged run", "id", b, "error", err)
	}

	m.mergeFailures = 0
	m.runs.Insert(newID)
	return nil
}

// retryMerge re-inserts a and b (already popped) so the next attempt sees
// the same pair, counting consecutive failures toward maxRetries.
func (m *Manager[K]) retryMerge(a, b runfile.ID, cause error) error {
	m.runs.Insert(a)
	m.runs.Insert(b)
	m.mergeFailures++
	if m.mergeFailures > m.maxRetries {
		return fmt.Errorf("manager: leveled merge open: %w", cause)
	}
	m.logger.Warn("leveled merge open failed, will retry", "error", cause)
	return nil
}

// Finish stops the loop, drains whatever is left in the ingestion queue
// and the pairing queue, then repeatedly collapses the run set regardless
// of level until exactly one run remains, returning its path.
func (m *Manager[K]) Finish(ctx context.Context) (string, error) {
	m.ingestion.Drain()
	m.Stop()

	for {
		b, ok := m.ingestion.TryPop()
		if !ok {
			break
		}
		m.sortAndQueue(b.Records)
	}

	for len(m.pairing) >= 2 {
		if err := m.pairMergeToLevel0(); err != nil {
			return "", err
		}
	}
	if len(m.pairing) == 1 {
		id := runfile.ID{Seq: m.takeNextSeq(), Level: 0}
		if err := runfile.WriteSorted[K](m.workDir, id, m.codec, m.pairing[0]); err != nil {
			return "", fmt.Errorf("manager: drain flush: %w", err)
		}
		m.pairing = nil
		m.runs.Insert(id)
	}

	for m.runs.Len() > 1 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a, b, ok := m.runs.Smallest()
		if !ok {
			break
		}
		if err := m.mergeTwoRuns(a, b, true); err != nil {
			return "", err
		}
	}

	if m.runs.Len() == 0 {
		id := runfile.ID{Seq: m.takeNextSeq(), Level: 0}
		if err := runfile.WriteSorted[K](m.workDir, id, m.codec, nil); err != nil {
			return "", fmt.Errorf("manager: empty drain: %w", err)
		}
		m.runs.Insert(id)
	}

	final, _ := m.runs.PopSmallest()
	return final.Path(m.workDir), nil
}
