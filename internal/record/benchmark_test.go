package record

import (
	"os"
	"path/filepath"
	"testing"
)

func BenchmarkBatchedWriterWrite(b *testing.B) {
	dir := b.TempDir()
	f, err := os.Create(filepath.Join(dir, "bench.bin"))
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	w := NewBatchedWriter[int32](f, int32Codec{}, DefaultBatchRecords)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := w.Write(int32(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkBatchedReaderRead(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, "bench.bin")

	f, err := os.Create(path)
	if err != nil {
		b.Fatal(err)
	}
	w := NewBatchedWriter[int32](f, int32Codec{}, DefaultBatchRecords)
	for i := 0; i < b.N; i++ {
		if err := w.Write(int32(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		b.Fatal(err)
	}

	rf, err := os.Open(path)
	if err != nil {
		b.Fatal(err)
	}
	defer rf.Close()
	r := NewBatchedReader[int32](rf, int32Codec{}, DefaultBatchRecords)

	b.ReportAllocs()
	b.ResetTimer()

	for {
		more, err := r.HasMore()
		if err != nil {
			b.Fatal(err)
		}
		if !more {
			break
		}
		_ = r.Current()
		r.Advance()
	}
}
