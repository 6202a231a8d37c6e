package runfile

import (
	"fmt"
	"os"

	"github.com/entreya/extsort/internal/record"
)

// MmapThreshold is the final-run size above which Execute switches its
// scan from buffered reads to a zero-copy mmap.
const MmapThreshold = 8 * 1024 * 1024

// FinalReader streams the terminal collapsed run produced by drain. It
// flocks the file for its lifetime so a second concurrent Execute on the
// same run blocks until the first is done (writers do not take the lock),
// and switches to a
// zero-copy mmap scan once the file is large enough to make the syscall
// savings worthwhile.
type FinalReader[K any] struct {
	f      *os.File
	codec  record.Codec[K]
	locked bool

	mmapData []byte
	pos      int // byte offset into mmapData, when mmapData != nil

	br *record.BatchedReader[K]
}

// OpenFinal opens path for streaming via Execute.
func OpenFinal[K any](path string, codec record.Codec[K]) (*FinalReader[K], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runfile: open final: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = unlockFile(f)
		_ = f.Close()
		return nil, fmt.Errorf("runfile: stat final: %w", err)
	}

	fr := &FinalReader[K]{f: f, codec: codec, locked: true}

	if stat.Size() >= MmapThreshold {
		if data, err := mmapFile(f); err == nil {
			fr.mmapData = data
			return fr, nil
		}
		// fall through to buffered reads if mmap fails for any reason
	}

	fr.br = record.NewBatchedReader[K](f, codec, record.DefaultBatchRecords)
	return fr, nil
}

// HasMore reports whether Current would return a valid record.
func (fr *FinalReader[K]) HasMore() (bool, error) {
	if fr.mmapData != nil {
		return fr.pos+fr.codec.Size() <= len(fr.mmapData), nil
	}
	return fr.br.HasMore()
}

// Current returns the record at the reader's cursor. Call HasMore first.
func (fr *FinalReader[K]) Current() K {
	if fr.mmapData != nil {
		size := fr.codec.Size()
		return fr.codec.Decode(fr.mmapData[fr.pos : fr.pos+size])
	}
	return fr.br.Current()
}

// Advance moves the cursor forward by one record.
func (fr *FinalReader[K]) Advance() {
	if fr.mmapData != nil {
		fr.pos += fr.codec.Size()
		return
	}
	fr.br.Advance()
}

// Close releases the mmap (if any), the advisory lock, and the file.
func (fr *FinalReader[K]) Close() error {
	var err error
	if fr.mmapData != nil {
		err = munmapFile(fr.mmapData)
	}
	if fr.locked {
		if uerr := unlockFile(fr.f); uerr != nil && err == nil {
			err = uerr
		}
	}
	if cerr := fr.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
