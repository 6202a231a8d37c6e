// Package runfile manages the on-disk sorted run files the manager stages
// and merges: naming, creation, opening, and deletion. Run files are
// stored raw, with no block compression, since they're rewritten and
// deleted constantly as the merge levels progress.
package runfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/entreya/extsort/internal/record"
)

// ID identifies a run file by its (sequence, level) pair. Seq is assigned
// from a manager-local monotonic counter; Level is 0 for runs produced
// directly from in-memory batches and increases by one each time two runs
// of equal level are merged.
type ID struct {
	Seq   uint32
	Level uint32
}

// Path returns the run file's path within dir: B{seq}_{level}.tmp.
func (id ID) Path(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("B%d_%d.tmp", id.Seq, id.Level))
}

// Writer appends records to a fresh run file in order.
type Writer[K any] struct {
	id ID
	f  *os.File
	bw *record.BatchedWriter[K]
}

// Create opens a new run file for id, truncating any stale contents.
// A create failure is non-fatal: callers should re-insert the intended
// inputs into the run set and retry on the next manager tick.
func Create[K any](dir string, id ID, codec record.Codec[K]) (*Writer[K], error) {
	f, err := os.Create(id.Path(dir))
	if err != nil {
		return nil, fmt.Errorf("runfile: create %v: %w", id, err)
	}
	return &Writer[K]{
		id: id,
		f:  f,
		bw: record.NewBatchedWriter[K](f, codec, record.DefaultBatchRecords),
	}, nil
}

// Write appends k to the run file.
func (w *Writer[K]) Write(k K) error {
	return w.bw.Write(k)
}

// Close flushes and closes the run file.
func (w *Writer[K]) Close() error {
	return w.bw.Close()
}

// ID reports the identifier this writer is staging.
func (w *Writer[K]) ID() ID { return w.id }

// Reader streams records from an existing run file in order.
type Reader[K any] struct {
	id ID
	f  *os.File
	br *record.BatchedReader[K]
}

// Open opens id's run file for reading. A read-open failure is likewise
// recoverable by re-insertion into the run set, not fatal.
func Open[K any](dir string, id ID, codec record.Codec[K]) (*Reader[K], error) {
	f, err := os.Open(id.Path(dir))
	if err != nil {
		return nil, fmt.Errorf("runfile: open %v: %w", id, err)
	}
	return &Reader[K]{
		id: id,
		f:  f,
		br: record.NewBatchedReader[K](f, codec, record.DefaultBatchRecords),
	}, nil
}

// HasMore reports whether Current would return a valid record.
func (r *Reader[K]) HasMore() (bool, error) { return r.br.HasMore() }

// Current returns the record at the reader's cursor.
func (r *Reader[K]) Current() K { return r.br.Current() }

// Advance moves the cursor forward by one record.
func (r *Reader[K]) Advance() { r.br.Advance() }

// Close releases the underlying file.
func (r *Reader[K]) Close() error { return r.f.Close() }

// ID reports the identifier this reader is streaming.
func (r *Reader[K]) ID() ID { return r.id }

// Remove deletes id's run file from dir.
func Remove(dir string, id ID) error {
	if err := os.Remove(id.Path(dir)); err != nil {
		return fmt.Errorf("runfile: remove %v: %w", id, err)
	}
	return nil
}

// WriteSorted streams an already-sorted sequence of records into a fresh
// run file for id. Used by the drain phase to flush an odd leftover batch
// with no pairing partner.
func WriteSorted[K any](dir string, id ID, codec record.Codec[K], sorted []K) error {
	w, err := Create[K](dir, id, codec)
	if err != nil {
		return err
	}
	for _, k := range sorted {
		if err := w.Write(k); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
