package reasoning

import (
	"context"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/errors"
)

// Chunk is one element of a streamed completion.
type Chunk struct {
	// Text is the incremental reply text, empty on terminal chunks
	Text string
	// Done marks successful completion. It is the end marker of the stream.
	Done bool
	// Err is set on a failed or cancelled stream and is terminal too
	Err error
}

// Terminal reports whether c ends the stream.
func (c Chunk) Terminal() bool {
	return c.Done || c.Err != nil
}

// StreamWriter is the producer side of a chunk stream.
type StreamWriter struct {
	ctx context.Context
	ch  chan Chunk
}

// NewStream creates an unbuffered chunk stream bound to ctx.
func NewStream(ctx context.Context) (*StreamWriter, <-chan Chunk) {
	ch := make(chan Chunk)
	return &StreamWriter{ctx: ctx, ch: ch}, ch
}

// Send delivers text to the consumer. It returns false once ctx is done, in
// which case the producer should stop and call Finish with ctx.Err().
func (w *StreamWriter) Send(text string) bool {
	if w.ctx.Err() != nil {
		return false
	}
	select {
	case w.ch <- Chunk{Text: text}:
		return true
	case <-w.ctx.Done():
		return false
	}
}

// Finish sends the terminal chunk and closes the stream. A nil err marks
// completion. Once ctx is done the terminal chunk may be dropped and the
// stream is simply closed.
func (w *StreamWriter) Finish(err error) {
	defer close(w.ch)

	if err == nil && w.ctx.Err() != nil {
		err = w.ctx.Err()
	}
	terminal := Chunk{Done: true}
	if err != nil {
		terminal = Chunk{Err: err}
	}
	select {
	case w.ch <- terminal:
	case <-w.ctx.Done():
	}
}

// Collect drains a stream into the full reply. A stream that closes without
// its end marker yields ErrStreamCancelled.
func Collect(ch <-chan Chunk) (string, error) {
	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			return sb.String(), c.Err
		}
		if c.Done {
			return sb.String(), nil
		}
		sb.WriteString(c.Text)
	}
	return sb.String(), errors.ErrStreamCancelled
}

// StreamText replays a complete reply as a word-by-word stream. Adapters
// without native streaming use it.
func StreamText(ctx context.Context, text string) <-chan Chunk {
	w, ch := NewStream(ctx)
	go func() {
		for _, part := range strings.SplitAfter(text, " ") {
			if part == "" {
				continue
			}
			if !w.Send(part) {
				w.Finish(ctx.Err())
				return
			}
		}
		w.Finish(nil)
	}()
	return ch
}
