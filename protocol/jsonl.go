package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// JSONLError reports a malformed line read from the agent's stdout: either
// invalid JSON, or JSON that fails the strict per-variant schema in Decode.
// Per §4.1, the agent's stdout must carry only protocol lines; this error
// quotes the offending prefix (first 200 bytes) and its line number.
type JSONLError struct {
	Reason     string
	Line       string
	LineNumber int
}

func (e *JSONLError) Error() string {
	return fmt.Sprintf("%s (line %d): %s", e.Reason, e.LineNumber, e.Line)
}

const maxLinePreview = 200

// ScanMessages reads newline-delimited JSON messages from r, invoking fn for
// each successfully decoded Message in order. Blank lines are skipped. The
// scan stops at the first JSONLError (invalid JSON or unknown/malformed
// message) or io.EOF; fn returning a non-nil error also stops the scan and
// that error is returned unwrapped.
func ScanMessages(r io.Reader, fn func(Message) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg, err := decodeLine(line, lineNumber)
		if err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func decodeLine(line string, lineNumber int) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Message{}, &JSONLError{
			Reason:     "invalid JSON from agent stdout; print logs to stderr, not stdout",
			Line:       previewOf(line),
			LineNumber: lineNumber,
		}
	}
	msg, err := Decode(raw)
	if err != nil {
		return Message{}, &JSONLError{Reason: err.Error(), Line: previewOf(line), LineNumber: lineNumber}
	}
	return msg, nil
}

func previewOf(line string) string {
	if len(line) <= maxLinePreview {
		return line
	}
	return line[:maxLinePreview]
}

// WriteLine serializes m and writes it to w followed by a single newline, in
// one Write call so a concurrent reader never observes a partial line.
func WriteLine(w io.Writer, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
