// ABOUTME: Incremental Server-Sent Events frame decoder for the agent's reasoning stream.
// ABOUTME: Reads from an io.Reader and yields (event type, data) frames, buffering partial lines across reads.

package sse

import (
	"bufio"
	"io"
	"strings"
)

// Frame is a single decoded event-stream frame.
type Frame struct {
	Type string // from the "event:" line
	Data string // from the "data:" line(s), joined with newlines for multi-line payloads
}

// Parser decodes frames from an io.Reader. The reader may deliver bytes in
// arbitrary chunks; line and frame boundaries are reassembled internally.
type Parser struct {
	scanner *lineScanner
	done    bool

	// Accumulation state for the frame being built.
	eventType string
	dataLines []string
}

// NewParser creates a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{scanner: newLineScanner(r)}
}

// Next returns the next complete frame from the stream.
//
// A frame is dispatched by a blank line, and only when both an event type and
// non-empty data have accumulated; anything less is discarded. At end
// of stream Next returns io.EOF without emitting a trailing partial frame.
func (p *Parser) Next() (Frame, error) {
	if p.done {
		return Frame{}, io.EOF
	}

	for {
		line, err := p.scanner.readLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}

		// A blank line dispatches the current frame.
		if line == "" {
			data := strings.Join(p.dataLines, "\n")
			if p.eventType == "" || data == "" {
				// Incomplete frame: skip rather than emit a half-built frame.
				// A data line whose value is empty does not count as data.
				p.resetState()
				continue
			}
			frame := Frame{Type: p.eventType, Data: data}
			p.resetState()
			return frame, nil
		}

		// Comment lines start with ':'.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "event":
			p.eventType = value
		case "data":
			p.dataLines = append(p.dataLines, value)
		default:
			// Unknown fields are ignored.
		}
	}
}

// parseLine splits a stream line into field name and value. The field is
// everything before the first colon; the value is everything after, with a
// single leading space stripped. A line without a colon is all field name.
func parseLine(line string) (field, value string) {
	colonIdx := strings.IndexByte(line, ':')
	if colonIdx == -1 {
		return line, ""
	}
	field = line[:colonIdx]
	value = line[colonIdx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// resetState clears the accumulated frame state for the next frame.
func (p *Parser) resetState() {
	p.eventType = ""
	p.dataLines = nil
}

// lineScanner reads lines from an io.Reader, handling CR, LF, and CRLF line
// endings. bufio.Scanner only handles LF and CRLF natively, so we implement a
// custom scanner that also treats standalone CR as a line terminator.
type lineScanner struct {
	reader *bufio.Reader
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{reader: bufio.NewReaderSize(r, 4096)}
}

// readLine reads one line, stripping the line ending. A run of bytes cut off
// by EOF with no terminator is still returned as a line; the frame layer
// decides whether it amounts to anything.
func (s *lineScanner) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				if line.Len() > 0 {
					return line.String(), nil
				}
				return "", io.EOF
			}
			return "", err
		}

		if b == '\n' {
			return line.String(), nil
		}

		if b == '\r' {
			// Check for CRLF. If next byte is LF, consume it.
			next, err := s.reader.ReadByte()
			if err == nil {
				if next != '\n' {
					_ = s.reader.UnreadByte()
				}
			}
			return line.String(), nil
		}

		line.WriteByte(b)
	}
}
