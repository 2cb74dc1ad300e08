package rnet

import (
	"encoding/hex"
	"strings"
)

// Frame is one complete RNet message including its trailing terminator.
type Frame []byte

// String returns the frame as space-separated upper-case hex.
func (f Frame) String() string {
	if len(f) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, b := range f {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{b})))
	}
	return sb.String()
}

// StreamParser reassembles frames from an arbitrarily chunked byte stream.
//
// Bytes after the last terminator are retained until a later Feed completes
// them. The concatenation of all emitted frames plus Pending always equals
// the concatenation of all fed chunks.
//
// StreamParser is not safe for concurrent use; each connection session
// owns its own parser.
type StreamParser struct {
	pending []byte
}

// NewStreamParser creates an empty parser.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Feed appends a chunk and returns every frame completed by it, in order.
func (p *StreamParser) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}

	var frames []Frame
	for _, b := range chunk {
		p.pending = append(p.pending, b)
		if b == Terminator {
			frames = append(frames, Frame(p.pending))
			p.pending = nil
		}
	}
	return frames
}

// Pending returns a copy of the bytes waiting for a terminator.
func (p *StreamParser) Pending() []byte {
	return cloneBytes(p.pending)
}

// Reset discards any partial frame.
func (p *StreamParser) Reset() {
	p.pending = nil
}
