package stdio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

func TestLineReaderSplitsAndSkipsBlank(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\n\n  \r\nb\r\nc"))
	var got []string
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, string(line))
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("unexpected lines: %q", got)
	}
	if _, err := lr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected sticky EOF, got %v", err)
	}
}

func TestLineReaderBuffersPartialLines(t *testing.T) {
	pr, pw := io.Pipe()
	lr := NewLineReader(pr)

	lines := make(chan string, 1)
	go func() {
		line, err := lr.Next()
		if err != nil {
			close(lines)
			return
		}
		lines <- string(line)
	}()

	_, _ = pw.Write([]byte(`{"jsonrpc":"2.0",`))
	select {
	case l := <-lines:
		t.Fatalf("line delivered before terminator: %q", l)
	case <-time.After(20 * time.Millisecond):
	}
	_, _ = pw.Write([]byte(`"method":"ping"}` + "\n"))

	select {
	case l := <-lines:
		if l != `{"jsonrpc":"2.0","method":"ping"}` {
			t.Fatalf("unexpected line %q", l)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for completed line")
	}
	_ = pw.Close()
}

func TestLineReaderLongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	lr := NewLineReader(strings.NewReader(long + "\n"))
	line, err := lr.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(line) != len(long) {
		t.Fatalf("expected %d bytes, got %d", len(long), len(line))
	}
}

func TestLineWriterConcurrentWritesDoNotTear(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)

	const writers, per = 16, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < per; j++ {
				resp, _ := jsonrpc.NewResultResponse(jsonrpc.NewRequestID(i*per+j), map[string]string{"text": strings.Repeat("y", 512)})
				if err := lw.WriteMessage(resp); err != nil {
					t.Errorf("write: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		var m jsonrpc.AnyMessage
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("torn line %d: %v", n, err)
		}
		n++
	}
	if n != writers*per {
		t.Fatalf("expected %d lines, got %d", writers*per, n)
	}
}
