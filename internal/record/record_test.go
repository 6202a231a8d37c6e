package record

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

type int32Codec struct{}

func (int32Codec) Size() int { return 4 }
func (int32Codec) Encode(k int32, buf []byte) {
	binary.BigEndian.PutUint32(buf, uint32(k))
}
func (int32Codec) Decode(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf))
}

func writeAll(t *testing.T, path string, codec Codec[int32], batchRecords int, vals []int32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := NewBatchedWriter[int32](f, codec, batchRecords)
	for _, v := range vals {
		if err := w.Write(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readAll(t *testing.T, path string, codec Codec[int32], batchRecords int) []int32 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	r := NewBatchedReader[int32](f, codec, batchRecords)
	defer r.Close()

	var out []int32
	for {
		more, err := r.HasMore()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		out = append(out, r.Current())
		r.Advance()
	}
	return out
}

func TestBatchedWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.bin")
	vals := make([]int32, 2000)
	for i := range vals {
		vals[i] = int32(i)
	}

	// Write with one buffer size, read with a different, non-multiple size,
	// exercising refill boundaries that don't line up with the write batch.
	writeAll(t, path, int32Codec{}, 700, vals)
	got := readAll(t, path, int32Codec{}, 512)

	if len(got) != len(vals) {
		t.Fatalf("got %d records, want %d", len(got), len(vals))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("record %d: got %d, want %d", i, got[i], vals[i])
		}
	}
}

func TestBatchedReaderEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := readAll(t, path, int32Codec{}, 64)
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestBatchedReaderTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.bin")
	writeAll(t, path, int32Codec{}, 64, []int32{1, 2, 3})

	// Append 2 stray bytes: a short read mid-record at EOF, which must be
	// treated as end-of-stream rather than an error.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{0xAA, 0xBB}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := readAll(t, path, int32Codec{}, 2)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}
