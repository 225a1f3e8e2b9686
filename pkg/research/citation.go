package research

import (
	"strconv"
	"strings"
)

var linkEscaper = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "[", "%5B", "]", "%5D")

// RewriteCitations binds plain bracket markers such as [2] or [1, 3] to the
// result list, producing [[2](url)] style links. Numerals are 1-based indexes
// into results. Out of range numerals stay as bare numbers. Markers already
// followed by a link parenthesis are left alone, so the rewrite is idempotent.
func RewriteCitations(text string, results []SearchResult) string {
	if !strings.Contains(text, "[") {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))

	cursor := 0
	for cursor < len(text) {
		idx := strings.IndexByte(text[cursor:], '[')
		if idx < 0 {
			sb.WriteString(text[cursor:])
			break
		}
		start := cursor + idx
		sb.WriteString(text[cursor:start])

		nums, end, ok := scanMarker(text, start)
		if !ok || (end < len(text) && text[end] == '(') {
			sb.WriteByte('[')
			cursor = start + 1
			continue
		}

		sb.WriteString(renderMarker(nums, results))
		cursor = end
	}
	return sb.String()
}

// scanMarker parses "[n]" or "[n, m, ...]" starting at text[start] == '['.
// It returns the numerals and the index just past the closing bracket.
func scanMarker(text string, start int) ([]string, int, bool) {
	var nums []string
	i := start + 1
	for {
		j := i
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j == i {
			return nil, 0, false
		}
		nums = append(nums, text[i:j])
		i = j
		for i < len(text) && text[i] == ' ' {
			i++
		}
		if i >= len(text) {
			return nil, 0, false
		}
		switch text[i] {
		case ']':
			return nums, i + 1, true
		case ',':
			i++
			for i < len(text) && text[i] == ' ' {
				i++
			}
		default:
			return nil, 0, false
		}
	}
}

func renderMarker(nums []string, results []SearchResult) string {
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		if url, ok := resolveCitation(n, results); ok {
			parts = append(parts, "["+n+"]("+linkEscaper.Replace(url)+")")
			continue
		}
		parts = append(parts, n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func resolveCitation(num string, results []SearchResult) (string, bool) {
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 1 || idx > len(results) {
		return "", false
	}
	url := strings.TrimSpace(results[idx-1].URL)
	if url == "" {
		return "", false
	}
	return url, true
}
