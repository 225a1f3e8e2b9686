package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteCitations(t *testing.T) {
	results := []SearchResult{
		{URL: "https://a.example/one"},
		{URL: "https://b.example/two words"},
		{URL: "https://c.example/(three)"},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markers", "plain text", "plain text"},
		{"single", "Go is fast [1].", "Go is fast [[1](https://a.example/one)]."},
		{"list", "See [1, 3]", "See [[1](https://a.example/one), [3](https://c.example/%28three%29)]"},
		{"list without spaces", "See [1,2]", "See [[1](https://a.example/one), [2](https://b.example/two%20words)]"},
		{"out of range", "Cited [9].", "Cited [9]."},
		{"mixed range", "Cited [2, 9].", "Cited [[2](https://b.example/two%20words), 9]."},
		{"zero is out of range", "[0]", "[0]"},
		{"already linked", "[1](https://elsewhere)", "[1](https://elsewhere)"},
		{"not a marker", "[see note] and [a1]", "[see note] and [a1]"},
		{"unterminated", "trailing [1", "trailing [1"},
		{"literal year stays", "In [2023] output grew [1].", "In [2023] output grew [[1](https://a.example/one)]."},
		{"adjacent markers", "[1][2]", "[[1](https://a.example/one)][[2](https://b.example/two%20words)]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteCitations(tt.in, results))
		})
	}
}

func TestRewriteCitations_Idempotent(t *testing.T) {
	results := []SearchResult{{URL: "https://a.example"}, {URL: "https://b.example"}}
	inputs := []string{
		"One [1] two [2] three [3].",
		"Grouped [1, 2, 7] and [[1](https://a.example)].",
		"## Heading\n\n- bullet [2]\n- [x] task",
	}
	for _, in := range inputs {
		once := RewriteCitations(in, results)
		assert.Equal(t, once, RewriteCitations(once, results), in)
	}
}

func TestRewriteCitations_EmptyURLFallsBack(t *testing.T) {
	results := []SearchResult{{URL: " "}}
	assert.Equal(t, "[1]", RewriteCitations("[1]", results))
	assert.Equal(t, "[1]", RewriteCitations("[1]", nil))
}
