package main

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ReadOutcome classifies the result of reading one request.
type ReadOutcome int

const (
	// ReadLine means a request was read.
	ReadLine ReadOutcome = iota
	// ReadEOF means input is exhausted; the session should end.
	ReadEOF
	// ReadInterrupted means the surrounding context was cancelled.
	ReadInterrupted
)

// RequestReader reads multi-line requests from an input stream. A request is
// one or more non-empty lines terminated by a blank line or EOF; blank lines
// before any input are skipped.
//
// Lines are pumped through a goroutine so that a context cancellation ends a
// read immediately, even while blocked waiting for input.
type RequestReader struct {
	ctx   context.Context
	lines chan string
}

// NewRequestReader creates a reader over r, bounded by ctx.
func NewRequestReader(ctx context.Context, r io.Reader) *RequestReader {
	reader := &RequestReader{
		ctx:   ctx,
		lines: make(chan string),
	}
	go reader.pump(r)
	return reader
}

// pump feeds lines into the channel until EOF or cancellation. The channel
// is closed on EOF so receivers can tell input is exhausted.
func (r *RequestReader) pump(src io.Reader) {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		select {
		case r.lines <- scanner.Text():
		case <-r.ctx.Done():
			return
		}
	}
	close(r.lines)
}

// ReadRequest reads the next request. The outcome says what happened; the
// string is only meaningful for ReadLine. Cancellation wins over pending
// input: once the context is done, ReadRequest reports ReadInterrupted
// without waiting for another line.
func (r *RequestReader) ReadRequest() (string, ReadOutcome) {
	var lines []string
	for {
		select {
		case <-r.ctx.Done():
			return "", ReadInterrupted
		default:
		}

		select {
		case <-r.ctx.Done():
			return "", ReadInterrupted
		case line, ok := <-r.lines:
			if !ok {
				// EOF mid-request submits what was read; the next
				// call reports EOF.
				if len(lines) > 0 {
					return strings.Join(lines, "\n"), ReadLine
				}
				return "", ReadEOF
			}
			line = strings.TrimRight(line, "\r")
			if line == "" {
				if len(lines) > 0 {
					return strings.Join(lines, "\n"), ReadLine
				}
				continue
			}
			lines = append(lines, line)
		}
	}
}
