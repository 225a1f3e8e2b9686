package research

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SegmentKind tells whether text was produced inside the thinking span.
type SegmentKind int

const (
	SegmentAnswer SegmentKind = iota
	SegmentThinking
)

func (k SegmentKind) String() string {
	if k == SegmentThinking {
		return "thinking"
	}
	return "answer"
}

// Segment is a buffered run of text of one kind.
type Segment struct {
	Kind SegmentKind
	Text string
}

// ThinkScanner splits a streamed model response into thinking and answer
// segments. Chunks may cut a marker anywhere; the unmatched tail is held back
// until the next Feed. Text is released once the buffer holds at least
// flushWords words, or when the span kind changes.
type ThinkScanner struct {
	flushWords int
	inside     bool
	pending    string
	buf        strings.Builder
}

func NewThinkScanner(flushWords int) *ThinkScanner {
	if flushWords < 1 {
		flushWords = 1
	}
	return &ThinkScanner{flushWords: flushWords}
}

// Inside reports whether the scanner is currently within a thinking span.
func (s *ThinkScanner) Inside() bool { return s.inside }

// Feed consumes the next chunk and returns any segments ready to emit.
func (s *ThinkScanner) Feed(chunk string) []Segment {
	var out []Segment
	data := s.pending + chunk
	s.pending = ""

	for data != "" {
		marker := thinkOpen
		if s.inside {
			marker = thinkClose
		}

		if idx := strings.Index(data, marker); idx >= 0 {
			s.buf.WriteString(data[:idx])
			out = s.flush(out)
			s.inside = !s.inside
			data = data[idx+len(marker):]
			continue
		}

		keep := partialSuffix(data, marker)
		s.buf.WriteString(data[:len(data)-keep])
		s.pending = data[len(data)-keep:]
		break
	}

	if len(strings.Fields(s.buf.String())) >= s.flushWords {
		out = s.flush(out)
	}
	return out
}

// Close flushes whatever is buffered. A dangling partial marker is kept as text.
func (s *ThinkScanner) Close() []Segment {
	s.buf.WriteString(s.pending)
	s.pending = ""
	return s.flush(nil)
}

func (s *ThinkScanner) flush(out []Segment) []Segment {
	if s.buf.Len() == 0 {
		return out
	}
	kind := SegmentAnswer
	if s.inside {
		kind = SegmentThinking
	}
	out = append(out, Segment{Kind: kind, Text: s.buf.String()})
	s.buf.Reset()
	return out
}

// partialSuffix returns the length of the longest suffix of data that is a
// proper prefix of marker.
func partialSuffix(data, marker string) int {
	for n := min(len(marker)-1, len(data)); n > 0; n-- {
		if strings.HasSuffix(data, marker[:n]) {
			return n
		}
	}
	return 0
}

// stripThinking removes complete thinking spans from a non-streamed response.
func stripThinking(text string) string {
	s := NewThinkScanner(1)
	var sb strings.Builder
	for _, seg := range append(s.Feed(text), s.Close()...) {
		if seg.Kind == SegmentAnswer {
			sb.WriteString(seg.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
