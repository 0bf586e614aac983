package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/roach88/brokercheck/internal/engine"
	"github.com/roach88/brokercheck/internal/ir"
)

// MaxLineSize bounds a single JSON record.
const MaxLineSize = 16 << 20

// DecodeError reports a record that could not be parsed.
type DecodeError struct {
	Line uint64
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FileReader reads a JSON-lines test log.
//
// The ordinal of each record is its 1-based physical line number. Blank
// lines are skipped but still counted, so ordinals always match what an
// editor shows.
type FileReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    uint64
}

// NewReader reads records from r.
func NewReader(r io.Reader) *FileReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &FileReader{scanner: scanner}
}

// OpenFile opens a log file. The caller must Close the reader.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *FileReader) Next(ctx context.Context) (ir.TestLogLine, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ir.TestLogLine{}, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return ir.TestLogLine{}, &DecodeError{Line: r.line + 1, Err: err}
			}
			return ir.TestLogLine{}, io.EOF
		}
		r.line++

		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		log, err := ir.DecodeLogLine(r.line, raw)
		if err != nil {
			return ir.TestLogLine{}, &DecodeError{Line: r.line, Err: err}
		}
		return log, nil
	}
}

// Close releases the underlying file, if any.
func (r *FileReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll drains a source into memory.
func ReadAll(ctx context.Context, src engine.Source) ([]ir.TestLogLine, error) {
	var lines []ir.TestLogLine
	for {
		log, err := src.Next(ctx)
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, log)
	}
}
