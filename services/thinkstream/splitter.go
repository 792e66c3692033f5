// Package thinkstream separates inline reasoning markup from visible answer
// text in an incremental delta stream.
//
// A Splitter routes text outside <think>...</think> blocks to content and text
// inside them to reasoning. Tags split across chunk boundaries are still
// recognised: at most len(tag)-1 characters are held back between calls.
package thinkstream

import "strings"

const (
	DefaultOpenTag  = "<think>"
	DefaultCloseTag = "</think>"
)

// State is a snapshot of a Splitter between calls.
type State struct {
	InThink bool
	Pending string
}

// Splitter is owned by a single streaming turn and is not safe for
// concurrent use.
type Splitter struct {
	openTag  string
	closeTag string
	inThink  bool
	pending  string
	finished bool
}

// New returns a Splitter for <think> tags.
func New() *Splitter {
	return NewWithTags(DefaultOpenTag, DefaultCloseTag)
}

// NewWithTags returns a Splitter for custom delimiters. Both tags must be
// non-empty.
func NewWithTags(openTag, closeTag string) *Splitter {
	if openTag == "" || closeTag == "" {
		panic("thinkstream: empty tag")
	}
	return &Splitter{openTag: openTag, closeTag: closeTag}
}

// Segment is a run of text routed to one side of the split.
type Segment struct {
	Reasoning bool
	Text      string
}

// Segments feeds one delta and returns the resolved text as ordered
// segments, preserving the interleaving of content and reasoning.
func (s *Splitter) Segments(chunk string) []Segment {
	if s.finished {
		return nil
	}

	text := s.pending + chunk
	s.pending = ""

	var out []Segment
	emit := func(t string) {
		if t != "" {
			out = append(out, Segment{Reasoning: s.inThink, Text: t})
		}
	}
	for text != "" {
		tag := s.openTag
		if s.inThink {
			tag = s.closeTag
		}

		if i := strings.Index(text, tag); i >= 0 {
			emit(text[:i])
			text = text[i+len(tag):]
			s.inThink = !s.inThink
			continue
		}

		keep := partialSuffix(text, tag)
		emit(text[:len(text)-keep])
		s.pending = text[len(text)-keep:]
		break
	}
	return out
}

// Push feeds one delta and returns the content and reasoning it resolves.
func (s *Splitter) Push(chunk string) (content, reasoning string) {
	var c, r strings.Builder
	for _, seg := range s.Segments(chunk) {
		if seg.Reasoning {
			r.WriteString(seg.Text)
		} else {
			c.WriteString(seg.Text)
		}
	}
	return c.String(), r.String()
}

// Finish flushes any held-back text according to the current state. An
// unterminated think block is reported entirely as reasoning. Only the first
// call returns text.
func (s *Splitter) Finish() (content, reasoning string) {
	if s.finished {
		return "", ""
	}
	s.finished = true

	rest := s.pending
	s.pending = ""
	if s.inThink {
		return "", rest
	}
	return rest, ""
}

// State returns the current state.
func (s *Splitter) State() State {
	return State{InThink: s.inThink, Pending: s.pending}
}

// Split runs a whole string through a fresh Splitter.
func Split(text string) (content, reasoning string) {
	s := New()
	c1, r1 := s.Push(text)
	c2, r2 := s.Finish()
	return c1 + c2, r1 + r2
}

// partialSuffix returns the length of the longest suffix of text that is a
// strict prefix of tag.
func partialSuffix(text, tag string) int {
	for n := min(len(tag)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, tag[:n]) {
			return n
		}
	}
	return 0
}
