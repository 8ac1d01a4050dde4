package assistant

import (
	"bufio"
	"io"
	"strings"
	"time"

	"codeme/pkg/protocol"
)

// TextReader feeds typed commands into the queue. Meta commands are
// answered immediately instead of being queued; they never wait behind
// a plan in flight.
type TextReader struct {
	in    io.Reader
	queue *Queue
	meta  func(command string) (string, bool)
	out   io.Writer

	nowFunc func() time.Time
}

// NewTextReader creates a reader over in. meta is consulted first for
// every line; when it claims the line, its reply is printed and nothing
// is queued.
func NewTextReader(in io.Reader, out io.Writer, queue *Queue, meta func(string) (string, bool)) *TextReader {
	return &TextReader{in: in, out: out, queue: queue, meta: meta, nowFunc: time.Now}
}

// Run reads lines until EOF or a quit command. It returns true when the
// user asked to quit.
func (t *TextReader) Run() bool {
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return true
		}
		if reply, ok := t.meta(line); ok {
			_, _ = io.WriteString(t.out, reply+"\n")
			continue
		}
		t.queue.Push(protocol.Command{
			Source:     protocol.SourceText,
			RawText:    line,
			ReceivedAt: t.nowFunc(),
		})
	}
	return false
}
