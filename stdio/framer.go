package stdio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// LineReader splits a byte stream into newline-terminated lines. Bytes of a
// line that has not been terminated yet stay buffered until the terminator
// arrives; a trailing unterminated line is still returned when the stream
// ends. There is no line length limit.
type LineReader struct {
	br  *bufio.Reader
	err error
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next non-blank line without its terminator (a trailing
// "\r" is dropped too). It returns io.EOF once the stream is exhausted. The
// returned slice is owned by the caller.
func (lr *LineReader) Next() ([]byte, error) {
	for {
		if lr.err != nil {
			return nil, lr.err
		}
		line, err := lr.br.ReadBytes('\n')
		if err != nil {
			lr.err = err
			if !errors.Is(err, io.EOF) || len(line) == 0 {
				return nil, err
			}
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

// LineWriter writes one JSON message per line. Each message is emitted with a
// single Write call under a lock, so lines from concurrent writers never
// interleave.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteMessage encodes msg as compact JSON followed by "\n".
func (lw *LineWriter) WriteMessage(msg any) error {
	b := jsonrpc.Encode(msg)
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, '\n')

	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(buf)
	return err
}
