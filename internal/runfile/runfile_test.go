package runfile

import (
	"encoding/binary"
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

func readBackAll(t *testing.T, dir string, id ID) []int32 {
	t.Helper()
	r, err := Open[int32](dir, id, int32Codec{})
	if err != nil {
		t.Fatal(err)
	}
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

func TestWriteSortedThenOpenThenRemove(t *testing.T) {
	dir := t.TempDir()
	id := ID{Seq: 1, Level: 0}

	if err := WriteSorted[int32](dir, id, int32Codec{}, []int32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	got := readBackAll(t, dir, id)
	want := []int32{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if err := Remove(dir, id); err != nil {
		t.Fatal(err)
	}
	if _, err := Open[int32](dir, id, int32Codec{}); err == nil {
		t.Fatal("expected open of removed run file to fail")
	}
}

func TestIDPathNaming(t *testing.T) {
	id := ID{Seq: 7, Level: 2}
	got := id.Path("/work")
	want := "/work/B7_2.tmp"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpenFinalSmallFile(t *testing.T) {
	dir := t.TempDir()
	id := ID{Seq: 1, Level: 0}
	if err := WriteSorted[int32](dir, id, int32Codec{}, []int32{5, 6, 7}); err != nil {
		t.Fatal(err)
	}

	fr, err := OpenFinal[int32](id.Path(dir), int32Codec{})
	if err != nil {
		t.Fatal(err)
	}
	defer fr.Close()

	var got []int32
	for {
		more, err := fr.HasMore()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		got = append(got, fr.Current())
		fr.Advance()
	}
	if len(got) != 3 || got[0] != 5 || got[2] != 7 {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestOpenFinalLargeFileUsesMmap(t *testing.T) {
	dir := t.TempDir()
	id := ID{Seq: 1, Level: 0}

	n := MmapThreshold/4 + 1024 // 4 bytes/record, comfortably over the threshold
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(i)
	}
	if err := WriteSorted[int32](dir, id, int32Codec{}, vals); err != nil {
		t.Fatal(err)
	}

	fr, err := OpenFinal[int32](id.Path(dir), int32Codec{})
	if err != nil {
		t.Fatal(err)
	}
	defer fr.Close()

	if fr.mmapData == nil {
		t.Fatal("expected OpenFinal to take the mmap path for a file above MmapThreshold")
	}

	var got []int32
	for {
		more, err := fr.HasMore()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		got = append(got, fr.Current())
		fr.Advance()
	}
	if len(got) != len(vals) {
		t.Fatalf("got %d records, want %d", len(got), len(vals))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("record %d: got %d, want %d", i, got[i], vals[i])
		}
	}
}
