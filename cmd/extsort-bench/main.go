// Command extsort-bench generates random fixed-width records and times how
// fast the engine ingests, sorts, and streams them back out, splitting
// generation across concurrent worker goroutines.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	extsort "github.com/entreya/extsort"
	"github.com/entreya/extsort/internal/record"
)

type recordCodec struct{}

func (recordCodec) Size() int { return 8 }
func (recordCodec) Encode(k uint64, buf []byte) {
	binary.BigEndian.PutUint64(buf, k)
}
func (recordCodec) Decode(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

func less(a, b uint64) bool { return a < b }

func main() {
	totalRecords := flag.Int("records", 20_000_000, "total records to generate and sort")
	batchSize := flag.Int("batch", 4096, "records per pushed batch")
	workers := flag.Int("workers", runtime.NumCPU(), "concurrent producer goroutines")
	flag.Parse()

	workDir, err := os.MkdirTemp("", "extsort_bench")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(workDir)

	fmt.Printf("Sorting %d uint64 records with %d workers (batch size %d)...\n", *totalRecords, *workers, *batchSize)

	var codec record.Codec[uint64] = recordCodec{}
	eng, err := extsort.New[uint64](codec, less, extsort.Config{
		Threads: *workers,
		WorkDir: workDir,
	})
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	start := time.Now()

	perWorker := *totalRecords / *workers
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		n := perWorker
		if w == *workers-1 {
			n += *totalRecords % *workers
		}
		wg.Add(1)
		go func(seed int64, n int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			batch := make([]uint64, 0, *batchSize)
			for i := 0; i < n; i++ {
				batch = append(batch, rng.Uint64())
				if len(batch) == *batchSize {
					if err := eng.Push(ctx, batch); err != nil {
						fmt.Fprintf(os.Stderr, "push failed: %v\n", err)
						return
					}
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				if err := eng.Push(ctx, batch); err != nil {
					fmt.Fprintf(os.Stderr, "push failed: %v\n", err)
				}
			}
		}(int64(w)+1, n)
	}
	wg.Wait()

	ingestElapsed := time.Since(start)
	fmt.Printf("Ingested in %v\n", ingestElapsed)

	finishStart := time.Now()
	path, err := eng.Finish(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Collapsed to final run %s in %v\n", path, time.Since(finishStart))

	streamStart := time.Now()
	var count int64
	var prev uint64
	first := true
	err = eng.Execute(ctx, func(v uint64) error {
		if !first && v < prev {
			return fmt.Errorf("output not sorted: %d followed by %d", prev, v)
		}
		prev = v
		first = false
		count++
		return nil
	})
	if err != nil {
		panic(err)
	}

	elapsed := time.Since(start)
	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Streamed %d records in %v\n", count, time.Since(streamStart))
	fmt.Printf("Total time: %v (%.2f records/sec)\n", elapsed, float64(count)/elapsed.Seconds())
	fmt.Printf("--------------------------------------------------\n")
}
