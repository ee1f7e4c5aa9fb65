package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/memoir/internal/domain"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// Batch is what one Feed call decoded.
type Batch struct {
	Tokens  []string
	Dropped int   // events whose JSON payload could not be decoded
	Done    bool  // the [DONE] sentinel was seen
	Err     error // the server sent an error event; the stream is over
}

// Decoder turns event-stream bytes, split at arbitrary boundaries, into
// content tokens. A trailing line without '\n' is kept until the next Feed.
// One Decoder serves one stream; it is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	finished bool
}

// NewDecoder creates a decoder for one stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Finished reports whether the sentinel or an error event ended the stream.
func (d *Decoder) Finished() bool { return d.finished }

// Feed appends chunk and decodes every complete line in the buffer.
// After the stream is finished further input is ignored.
func (d *Decoder) Feed(chunk []byte) Batch {
	if d.finished {
		return Batch{}
	}
	d.buf = append(d.buf, chunk...)

	var b Batch
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : start+i]
		start += i + 1

		if d.decodeLine(line, &b) {
			d.buf = nil
			return b
		}
	}
	d.buf = d.buf[:copy(d.buf, d.buf[start:])]
	return b
}

// Flush decodes a trailing fragment as a final line, for streams that end
// without a newline after the last event.
func (d *Decoder) Flush() Batch {
	var b Batch
	if d.finished || len(d.buf) == 0 {
		return b
	}
	line := d.buf
	d.buf = nil
	d.decodeLine(line, &b)
	return b
}

// decodeLine handles one complete line. Returns true when the stream ended.
func (d *Decoder) decodeLine(line []byte, b *Batch) bool {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	payload, ok := bytes.CutPrefix(line, []byte(dataPrefix))
	if !ok {
		// Blank separators, comments (":"), "event:", "id:" and "retry:" carry no content.
		return false
	}
	payload = bytes.TrimPrefix(payload, []byte{' '})

	if string(payload) == doneMarker {
		d.finished = true
		b.Done = true
		return true
	}

	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		b.Dropped++
		return false
	}
	if ev.Error != nil {
		d.finished = true
		b.Err = fmt.Errorf("%w: stream error event: %s", domain.ErrTransport, ev.Error.describe())
		return true
	}
	if tok, ok := ev.deltaContent(); ok && tok != "" {
		b.Tokens = append(b.Tokens, tok)
	}
	return false
}

// streamEvent is the subset of a chat.completion.chunk the decoder reads.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *streamError `json:"error"`
}

type streamError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (e *streamError) describe() string {
	switch {
	case e.Message != "" && e.Type != "":
		return e.Type + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Type != "":
		return e.Type
	default:
		return "unknown error"
	}
}

// deltaContent extracts choices[0].delta.content. Missing anywhere along the path is one branch.
func (e *streamEvent) deltaContent() (string, bool) {
	if len(e.Choices) == 0 || e.Choices[0].Delta.Content == nil {
		return "", false
	}
	return *e.Choices[0].Delta.Content, true
}
