package sse

import (
	"bytes"
	"strconv"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	// ID is the last event id seen on the stream, it carries over to later
	// frames until another id field replaces it.
	ID    string
	Event string
	Data  string
	// Retry is the reconnection time in milliseconds, 0 when the frame had no
	// valid retry field.
	Retry int
}

// Parser splits a byte stream into frames. It keeps partial lines and
// partially received frames between calls to Feed, so chunk boundaries can
// fall anywhere, including inside a CRLF pair.
type Parser struct {
	buf []byte

	// pendingCR is set when the last chunk ended in '\r', a '\n' at the start
	// of the next chunk belongs to the same line ending.
	pendingCR bool

	lastID  string
	event   string
	data    bytes.Buffer
	hasData bool
	retry   int
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes a chunk and calls fn for every frame completed by it. It stops
// at the first error returned by fn.
func (p *Parser) Feed(chunk []byte, fn func(Frame) error) error {
	if p.pendingCR && len(chunk) > 0 {
		if chunk[0] == '\n' {
			chunk = chunk[1:]
		}
		p.pendingCR = false
	}
	p.buf = append(p.buf, chunk...)

	for {
		i := bytes.IndexAny(p.buf, "\r\n")
		if i < 0 {
			return nil
		}
		line := p.buf[:i]
		next := i + 1
		if p.buf[i] == '\r' {
			if next < len(p.buf) {
				if p.buf[next] == '\n' {
					next++
				}
			} else {
				p.pendingCR = true
			}
		}

		frame, ok := p.processLine(line)
		p.buf = p.buf[next:]
		if ok {
			if err := fn(frame); err != nil {
				return err
			}
		}
	}
}

// Close resets the parser. A frame that was not terminated by a blank line is
// discarded.
func (p *Parser) Close() {
	p.buf = nil
	p.pendingCR = false
	p.resetFrame()
}

func (p *Parser) processLine(line []byte) (Frame, bool) {
	if len(line) == 0 {
		return p.dispatch()
	}
	if line[0] == ':' {
		return Frame{}, false
	}

	var field, value []byte
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	} else {
		field = line
	}

	switch string(field) {
	case "event":
		p.event = string(value)
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.Write(value)
		p.hasData = true
	case "id":
		if bytes.IndexByte(value, 0) < 0 {
			p.lastID = string(value)
		}
	case "retry":
		if n, err := strconv.Atoi(string(value)); err == nil && n >= 0 && isDigits(value) {
			p.retry = n
		}
	}
	return Frame{}, false
}

func (p *Parser) dispatch() (Frame, bool) {
	defer p.resetFrame()
	if !p.hasData {
		return Frame{}, false
	}
	return Frame{
		ID:    p.lastID,
		Event: p.event,
		Data:  p.data.String(),
		Retry: p.retry,
	}, true
}

func (p *Parser) resetFrame() {
	p.event = ""
	p.data.Reset()
	p.hasData = false
	p.retry = 0
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}
