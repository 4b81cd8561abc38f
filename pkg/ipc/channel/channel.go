package channel

import (
	"bytes"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/acounter"
)

// LineEnd terminates every protocol message
const LineEnd = '\n'

// DefaultMaxLineSize bounds the buffering for a single unterminated line
const DefaultMaxLineSize = 1024 * 1024

// LineFunc handles one complete protocol line (terminator stripped)
type LineFunc func(line []byte)

// LineAssembler reassembles newline terminated messages from arbitrary
// stream chunks. It implements io.Writer so an io.Copy from a pipe can
// drive it. A line is surfaced only when its terminator arrives and
// partial trailing data stays buffered for the next write. Lines that
// outgrow the size limit before their terminator shows up are dropped
// and counted. Not safe for concurrent writers.
type LineAssembler struct {
	onLine  LineFunc
	maxSize int

	buf      bytes.Buffer
	skipping bool
	dropped  acounter.Type
}

// NewLineAssembler creates a line assembler with the default line size limit
func NewLineAssembler(onLine LineFunc) *LineAssembler {
	return NewLineAssemblerSize(onLine, DefaultMaxLineSize)
}

// NewLineAssemblerSize creates a line assembler with a custom line size limit
func NewLineAssemblerSize(onLine LineFunc, maxLineSize int) *LineAssembler {
	return &LineAssembler{
		onLine:  onLine,
		maxSize: maxLineSize,
	}
}

func (ref *LineAssembler) Write(p []byte) (int, error) {
	rest := p
	for {
		idx := bytes.IndexByte(rest, LineEnd)
		if idx < 0 {
			break
		}

		chunk := rest[:idx]
		rest = rest[idx+1:]

		if ref.skipping {
			//this chunk ends the oversized line
			ref.skipping = false
			ref.dropped.Inc()
			log.WithField("op", "channel.LineAssembler.Write").
				Debug("dropped oversized line")
			continue
		}

		line := chunk
		if ref.buf.Len() > 0 {
			ref.buf.Write(chunk)
			line = append([]byte(nil), ref.buf.Bytes()...)
			ref.buf.Reset()
		}

		if len(line) == 0 {
			continue
		}

		ref.onLine(line)
	}

	if len(rest) > 0 && !ref.skipping {
		if ref.buf.Len()+len(rest) > ref.maxSize {
			ref.buf.Reset()
			ref.skipping = true
		} else {
			ref.buf.Write(rest)
		}
	}

	return len(p), nil
}

// Buffered returns the number of bytes waiting for a line terminator
func (ref *LineAssembler) Buffered() int {
	return ref.buf.Len()
}

// Dropped returns the number of oversized lines discarded so far
func (ref *LineAssembler) Dropped() uint64 {
	return ref.dropped.Value()
}

// LineWriter serializes newline terminated message writes to a single
// stream. Safe for concurrent use.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter creates a line writer on top of the given stream
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteLine appends the line terminator and writes the message with a
// single Write call
func (ref *LineWriter) WriteLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, LineEnd)

	ref.mu.Lock()
	defer ref.mu.Unlock()

	_, err := ref.w.Write(buf)
	return err
}
