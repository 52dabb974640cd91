package buffer

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// The benchmarks run the buffer against the payload shapes the rest of
// the system stages through it: keyword telemetry lines, decoded
// readings, and batches of readings headed for an output.

// telemetryLines pre-renders n keyword lines so the hot loops measure
// the buffer, not fmt.
func telemetryLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("temp=%d.%02d hum=%d pres=%d.%d", 20+i%15, i%100, 40+i%50, 990+i%40, i%10)
	}
	return lines
}

// reading mirrors the shape of a decoded sample: a timestamp plus a
// fixed-width value row.
type reading struct {
	At     time.Time
	Values [4]float64
}

func BenchmarkBuffer_WriteLine(b *testing.B) {
	lines := telemetryLines(256)

	for _, capacity := range []int{1024, 4096} {
		b.Run(fmt.Sprintf("cap_%d", capacity), func(b *testing.B) {
			buf, err := NewCircularBuffer(capacity, WithOverflowPolicy[string](DropOldest))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					_ = buf.Write(lines[i%len(lines)])
					i++
				}
			})
		})
	}
}

// BenchmarkBuffer_WriteSaturated keeps the buffer full so every write
// exercises the overflow path. DropOldest is what the staging buffers
// run in practice; DropNewest is here for comparison.
func BenchmarkBuffer_WriteSaturated(b *testing.B) {
	policies := []struct {
		name   string
		policy OverflowPolicy
	}{
		{"drop_oldest", DropOldest},
		{"drop_newest", DropNewest},
	}
	lines := telemetryLines(256)

	for _, pol := range policies {
		b.Run(pol.name, func(b *testing.B) {
			buf, err := NewCircularBuffer(256, WithOverflowPolicy[string](pol.policy))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			for _, line := range lines {
				_ = buf.Write(line)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(lines[i%len(lines)])
			}
		})
	}
}

// BenchmarkBuffer_DrainBatch fills the buffer and drains it the way
// the flush loops do, at several batch widths.
func BenchmarkBuffer_DrainBatch(b *testing.B) {
	lines := telemetryLines(4096)

	for _, batch := range []int{64, 256, 1024} {
		b.Run(fmt.Sprintf("batch_%d", batch), func(b *testing.B) {
			buf, err := NewCircularBuffer(4096, WithOverflowPolicy[string](DropOldest))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for _, line := range lines {
					_ = buf.Write(line)
				}
				for !buf.IsEmpty() {
					buf.ReadBatch(batch)
				}
			}
		})
	}
}

// BenchmarkBuffer_StageAndFlush interleaves one writer with one
// drainer, the steady state of a tap staging into an output flush
// loop.
func BenchmarkBuffer_StageAndFlush(b *testing.B) {
	buf, err := NewCircularBuffer(1024, WithOverflowPolicy[string](DropOldest))
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Close()

	lines := telemetryLines(256)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				buf.ReadBatch(64)
			}
		}
	}()

	b.ResetTimer()
	i := 0
	for ; i < b.N; i++ {
		_ = buf.Write(lines[i%len(lines)])
	}
	b.StopTimer()
	close(done)
}

// BenchmarkBuffer_DropCallback measures the overflow path with the
// kind of callback production registers: a counter bump per dropped
// item.
func BenchmarkBuffer_DropCallback(b *testing.B) {
	var dropped atomic.Int64

	configs := []struct {
		name string
		opts []Option[string]
	}{
		{"without_callback", []Option[string]{WithOverflowPolicy[string](DropOldest)}},
		{"with_callback", []Option[string]{
			WithOverflowPolicy[string](DropOldest),
			WithDropCallback(func(string) { dropped.Add(1) }),
		}},
	}
	lines := telemetryLines(256)

	for _, cfg := range configs {
		b.Run(cfg.name, func(b *testing.B) {
			buf, err := NewCircularBuffer(64, cfg.opts...)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(lines[i%len(lines)])
			}
		})
	}
}

// BenchmarkBuffer_PayloadTypes compares the three payload shapes the
// system actually stages: raw lines, single readings, and reading
// batches.
func BenchmarkBuffer_PayloadTypes(b *testing.B) {
	b.Run("line", func(b *testing.B) {
		buf, err := NewCircularBuffer(1024, WithOverflowPolicy[string](DropOldest))
		if err != nil {
			b.Fatal(err)
		}
		defer buf.Close()

		lines := telemetryLines(256)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = buf.Write(lines[i%len(lines)])
		}
	})

	b.Run("reading", func(b *testing.B) {
		buf, err := NewCircularBuffer(1024, WithOverflowPolicy[reading](DropOldest))
		if err != nil {
			b.Fatal(err)
		}
		defer buf.Close()

		now := time.Now()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = buf.Write(reading{At: now, Values: [4]float64{21.5, 48, 1013.2, float64(i)}})
		}
	})

	b.Run("reading_batch", func(b *testing.B) {
		buf, err := NewCircularBuffer(256, WithOverflowPolicy[[]reading](DropOldest))
		if err != nil {
			b.Fatal(err)
		}
		defer buf.Close()

		now := time.Now()
		batch := make([]reading, 32)
		for i := range batch {
			batch[i] = reading{At: now, Values: [4]float64{21.5, 48, 1013.2, float64(i)}}
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = buf.Write(batch)
		}
	})
}
