// Package framer reassembles an arbitrarily chunked text stream into
// complete lines.
package framer

import "strings"

// Framer splits incoming chunks on line terminators, accepting both lone
// "\n" and "\r\n". The unterminated remainder of the last chunk is retained
// across calls, so chunk boundaries can fall anywhere, including between
// "\r" and "\n". The tail never contains a terminator and has no growth
// bound: a stream that never terminates a line is held until Reset.
//
// A Framer is owned by a single stream and is not safe for concurrent use.
type Framer struct {
	tail string
}

// New returns a framer with an empty tail.
func New() *Framer {
	return &Framer{}
}

// Feed appends chunk to the pending tail and returns the complete lines
// now available, in arrival order. Whitespace-only candidates are dropped;
// other lines are returned as-is with their terminator removed. The result
// is independent of how the stream was split into chunks.
func (f *Framer) Feed(chunk string) []string {
	data := f.tail + chunk
	if !strings.Contains(data, "\n") {
		f.tail = data
		return nil
	}

	segments := strings.Split(data, "\n")
	f.tail = segments[len(segments)-1]

	lines := make([]string, 0, len(segments)-1)
	for _, segment := range segments[:len(segments)-1] {
		line := strings.TrimSuffix(segment, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Reset discards the pending tail without emission. Used on disconnect so
// a partial line from one session never leaks into the next.
func (f *Framer) Reset() {
	f.tail = ""
}
