package framer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCompleteLines(t *testing.T) {
	f := New()

	lines := f.Feed("temp: 23.5\nhum: 60\n")

	assert.Equal(t, []string{"temp: 23.5", "hum: 60"}, lines)
	assert.Empty(t, f.tail)
}

func TestFeedRetainsPartialTail(t *testing.T) {
	f := New()

	lines := f.Feed("temp: 2")
	assert.Empty(t, lines)
	assert.Equal(t, "temp: 2", f.tail)

	lines = f.Feed("3.5\nhum")
	assert.Equal(t, []string{"temp: 23.5"}, lines)
	assert.Equal(t, "hum", f.tail)
}

func TestFeedCRLF(t *testing.T) {
	f := New()

	lines := f.Feed("a\r\nb\nc\r\n")

	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestFeedCRLFSplitAcrossChunks(t *testing.T) {
	f := New()

	lines := f.Feed("a\r")
	assert.Empty(t, lines)

	lines = f.Feed("\nb")
	assert.Equal(t, []string{"a"}, lines)
	assert.Equal(t, "b", f.tail)
}

func TestFeedDropsWhitespaceOnlyLines(t *testing.T) {
	f := New()

	lines := f.Feed("\n  \n\t\r\n x \n")

	// Interior whitespace is preserved on lines that carry content
	assert.Equal(t, []string{" x "}, lines)
}

func TestFeedEmptyChunk(t *testing.T) {
	f := New()
	assert.Empty(t, f.Feed(""))

	f.Feed("partial")
	assert.Empty(t, f.Feed(""))
	assert.Equal(t, "partial", f.tail)
}

func TestTailNeverContainsTerminator(t *testing.T) {
	f := New()

	chunks := []string{"a\nb", "\r", "\nc\r\nd\ne", "f\r", "\n", "gh"}
	for _, chunk := range chunks {
		f.Feed(chunk)
		assert.NotContains(t, f.tail, "\n")
		assert.NotContains(t, f.tail, "\r\n")
	}
}

func TestReassemblyIsSplitInvariant(t *testing.T) {
	const stream = "first: 1\r\nsecond: 2\n\n  \nthird: -3.5\r\ntail without end"
	expected := []string{"first: 1", "second: 2", "third: -3.5"}

	// Feed the whole stream at once
	whole := New()
	got := whole.Feed(stream)
	require.Equal(t, expected, got)

	// Feed one byte at a time
	byByte := New()
	var collected []string
	for i := 0; i < len(stream); i++ {
		collected = append(collected, byByte.Feed(stream[i:i+1])...)
	}
	assert.Equal(t, expected, collected)

	// Feed in a handful of uneven splits
	for _, cut := range []int{1, 7, 10, len(stream) / 2, len(stream) - 1} {
		f := New()
		var lines []string
		lines = append(lines, f.Feed(stream[:cut])...)
		lines = append(lines, f.Feed(stream[cut:])...)
		assert.Equal(t, expected, lines, "split at %d", cut)
	}
}

func TestReset(t *testing.T) {
	f := New()

	f.Feed("buffered partial")
	f.Reset()
	assert.Empty(t, f.tail)

	// A terminator after reset must not resurrect the discarded partial
	lines := f.Feed("\n")
	assert.Empty(t, lines)

	lines = f.Feed("fresh\n")
	assert.Equal(t, []string{"fresh"}, lines)
}

func TestLongUnterminatedStreamIsHeld(t *testing.T) {
	f := New()

	chunk := strings.Repeat("x", 1024)
	for i := 0; i < 8; i++ {
		assert.Empty(t, f.Feed(chunk))
	}
	assert.Len(t, f.tail, 8*1024)

	lines := f.Feed("\n")
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], 8*1024)
}
