package openai

import (
	"encoding/json"
	"strings"

	"github.com/upb/llm-chat-gateway/services/usage"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// streamScanner decodes an OpenAI-style server-sent event body incrementally.
// Writes may split lines anywhere; incomplete lines are buffered until their
// newline arrives or Close is called. Malformed frames are skipped.
type streamScanner struct {
	onDelta func(string)

	pending string
	text    strings.Builder
	usage   *usage.Usage

	frames  int
	skipped int
	done    bool
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

func newStreamScanner(onDelta func(string)) *streamScanner {
	return &streamScanner{onDelta: onDelta}
}

// Write feeds a chunk of body text.
func (s *streamScanner) Write(chunk string) {
	if s.done {
		return
	}
	data := s.pending + chunk
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.line(data[:i])
		data = data[i+1:]
		if s.done {
			data = ""
			break
		}
	}
	s.pending = data
}

// Close processes a trailing line that had no newline.
func (s *streamScanner) Close() {
	if s.pending != "" {
		rest := s.pending
		s.pending = ""
		s.line(rest)
	}
}

// Seen reports whether any frame or the sentinel was decoded.
func (s *streamScanner) Seen() bool {
	return s.frames > 0 || s.done
}

func (s *streamScanner) line(raw string) {
	if s.done {
		return
	}
	line := strings.TrimRight(raw, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return
	}
	if payload == doneSentinel {
		s.done = true
		return
	}

	var f streamFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		s.skipped++
		return
	}
	s.frames++

	if u := usage.DecodeOpenAI(f.Usage); u != nil {
		s.usage = u
	}
	if len(f.Choices) == 0 {
		return
	}
	if delta := f.Choices[0].Delta.Content; delta != "" {
		s.text.WriteString(delta)
		if s.onDelta != nil {
			s.onDelta(delta)
		}
	}
}
