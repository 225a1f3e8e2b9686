package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *ThinkScanner, chunks ...string) (thinking, answer string, segs []Segment) {
	for _, c := range chunks {
		segs = append(segs, s.Feed(c)...)
	}
	segs = append(segs, s.Close()...)

	var th, an strings.Builder
	for _, seg := range segs {
		if seg.Kind == SegmentThinking {
			th.WriteString(seg.Text)
		} else {
			an.WriteString(seg.Text)
		}
	}
	return th.String(), an.String(), segs
}

func TestThinkScanner_SplitAtEveryPosition(t *testing.T) {
	input := "<think>weigh the sources</think>[{\"tool\":\"web_search\"}]"

	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			s := NewThinkScanner(100)
			thinking, answer, _ := collect(s, input[:i], input[i:j], input[j:])
			require.Equal(t, "weigh the sources", thinking, "split at %d,%d", i, j)
			require.Equal(t, `[{"tool":"web_search"}]`, answer, "split at %d,%d", i, j)
		}
	}
}

func TestThinkScanner_FlushThreshold(t *testing.T) {
	s := NewThinkScanner(3)
	s.Feed("<think>")

	assert.Empty(t, s.Feed("one two "))
	segs := s.Feed("three four ")
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentThinking, segs[0].Kind)
	assert.Equal(t, "one two three four ", segs[0].Text)
	assert.True(t, s.Inside())

	segs = s.Feed("five</think>done")
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{Kind: SegmentThinking, Text: "five"}, segs[0])

	assert.Equal(t, []Segment{{Kind: SegmentAnswer, Text: "done"}}, s.Close())
}

func TestThinkScanner_DanglingPartialMarkerIsText(t *testing.T) {
	s := NewThinkScanner(10)
	_, answer, _ := collect(s, "a < b and x <thi")
	assert.Equal(t, "a < b and x <thi", answer)
}

func TestThinkScanner_NoMarkers(t *testing.T) {
	s := NewThinkScanner(10)
	thinking, answer, _ := collect(s, "NO_GAPS", "_FOUND")
	assert.Empty(t, thinking)
	assert.Equal(t, "NO_GAPS_FOUND", answer)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "term one\nterm two", stripThinking("<think>hmm\nok</think>\nterm one\nterm two\n"))
	assert.Equal(t, "plain", stripThinking("plain"))
}
