// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"bytes"
	"iter"
)

// Framer reassembles newline-delimited records from a byte stream
// delivered in arbitrary chunks. A chunk may end anywhere, including
// inside a multi-byte UTF-8 sequence: bytes are buffered until a full
// line is present and only then converted to a string.
//
// A Framer belongs to one connection. It is not safe for concurrent
// use.
type Framer struct {
	buffer []byte
	// start is the offset of the first unconsumed byte in buffer.
	start int
}

// Feed appends chunk to the pending fragment and returns a sequence
// of the complete lines now available, in stream order. Line
// terminators ("\n", with an optional preceding "\r") are removed and
// blank or whitespace-only lines are skipped.
//
// The sequence is lazy and consumes lines as it yields them. If the
// caller stops ranging early, the remaining lines stay buffered and
// are yielded by the next Feed.
func (f *Framer) Feed(chunk []byte) iter.Seq[string] {
	if f.start > 0 {
		remaining := copy(f.buffer, f.buffer[f.start:])
		f.buffer = f.buffer[:remaining]
		f.start = 0
	}
	f.buffer = append(f.buffer, chunk...)
	return f.lines
}

func (f *Framer) lines(yield func(string) bool) {
	for {
		index := bytes.IndexByte(f.buffer[f.start:], '\n')
		if index < 0 {
			return
		}
		line := f.buffer[f.start : f.start+index]
		f.start += index + 1

		text, ok := recordText(line)
		if !ok {
			continue
		}
		if !yield(text) {
			return
		}
	}
}

// Flush returns the unterminated trailing fragment, if it holds a
// non-blank record, and resets the Framer. Call it once the stream
// has ended: a server may omit the final newline.
func (f *Framer) Flush() (string, bool) {
	rest := f.buffer[f.start:]
	text, ok := recordText(rest)
	f.buffer = f.buffer[:0]
	f.start = 0
	return text, ok
}

// Pending returns the number of buffered bytes not yet yielded.
func (f *Framer) Pending() int {
	return len(f.buffer) - f.start
}

// recordText strips a trailing carriage return and reports whether
// anything other than whitespace remains.
func recordText(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return "", false
	}
	return string(line), true
}
