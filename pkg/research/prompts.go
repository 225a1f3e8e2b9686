package research

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

var breakdownPrompt = prompts.NewPromptTemplate(`You are a web search agent. For a given query, your work is to give the best possible answer to the user.
As a first step, break the query down into smaller search terms.

The search terms must be:
1. Concise.
2. Applicable to a web search engine.
3. Different enough from each other to surface a variety of results.
4. Extracted from the question if the query is phrased as one.

{{if .history}}You are also given the chat history of this session. Use it to understand what the user already knows.
<history>
{{.history}}
</history>
{{end}}
Generate a maximum of {{.max_terms}} search terms.
Output format: one search term per line and nothing else.

Today's date and time in ISO format is {{.current_date}}.

Here is the query:
{{.query}}`, []string{"query", "history", "max_terms", "current_date"})

var summarizePrompt = prompts.NewPromptTemplate(`You are an expert web research agent. Turn the given search results into a detailed report that answers the query.

- Use only the context. Do not invent anything.
- Organise the report with headings and bullet points so it is easy to read.
- Cite sources with their citation number in square brackets, for example [1] or [1, 3].
- Keep the title simple. Use the query as the heading.
- Prefer recent information.
- Do not wrap the answer in a code block.
{{if .history}}
Earlier in this conversation:
<history>
{{.history}}
</history>
{{end}}
The date in ISO format is {{.current_date}}.

This is the context:
{{.context}}

This is the query:
{{.query}}`, []string{"query", "context", "history", "current_date"})

var suggestPrompt = prompts.NewPromptTemplate(`For the given query and the answer it received, generate {{.count}} follow-up search suggestions.

- Keep each suggestion concise and strongly related to the answer.
- Plain text only, no bullet points or numbering.
- One suggestion per line and nothing else.

The current date and time in ISO format is {{.current_date}}.

The answer was:
{{.context}}

The query was:
{{.query}}`, []string{"query", "context", "count", "current_date"})

var reflectSystemPrompt = prompts.NewPromptTemplate(`You are a research editor preparing a long-form article on "{{.topic}}".
You receive a summary of what is known so far and the numbered search results it came from.
Decide whether important gaps remain before the article can be written.

You may think inside <think></think> tags. Outside of them, answer with JSON only:
- If gaps remain, a JSON array of tool calls:
  [{"tool": "web_search", "parameters": ["term one", "term two"]},
   {"tool": "scrape", "parameters": ["subtopic to focus on", "https://link-one", "https://link-two"]}]
  Use at most 3 parameters per web_search and at most 3 links per scrape.
  Only scrape links that appear in the search results.
- If nothing important is missing, answer exactly {{.sentinel}}

The current date in ISO format is {{.current_date}}.`, []string{"topic", "sentinel", "current_date"})

var reflectInputPrompt = prompts.NewPromptTemplate(`<summary>
{{.summary}}
</summary>
<search_results>
{{.results}}
</search_results>`, []string{"summary", "results"})

var planPrompt = prompts.NewPromptTemplate(`You are planning a long-form article on "{{.topic}}".
Using only the research below, produce a structured outline: a working title, the sections in order,
and for each section the key points and the citation numbers that support them.

Research:
{{.context}}`, []string{"topic", "context"})

var writePrompt = prompts.NewPromptTemplate(`Write a long-form markdown article on "{{.topic}}" following the outline.

- Use only the research below and cite it with citation numbers in square brackets, for example [2].
- Use headings, short paragraphs and lists where they help.
- Do not wrap the article in a code block.
{{if .images}}
You may embed some of these images where they fit:
{{.images}}
{{end}}
The date in ISO format is {{.current_date}}.

Outline:
{{.plan}}

Research:
{{.context}}`, []string{"topic", "plan", "context", "images", "current_date"})

const correctiveMessage = "Your previous response could not be parsed. Respond again with only a valid JSON array of tool calls, or " + NoGapsSentinel + " if no gaps remain."

func render(t prompts.PromptTemplate, values map[string]any) (string, error) {
	out, err := t.Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return out, nil
}

// formatHistory renders prior turns in the order they happened.
func formatHistory(turns []HistoryTurn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.Query, t.Response)
	}
	return strings.TrimSpace(sb.String())
}

// formatImages renders image references for the writer.
func formatImages(images []ImageResult) string {
	var sb strings.Builder
	for _, img := range images {
		fmt.Fprintf(&sb, "[%s](%s) from %s\n", img.Title, img.URL, img.Source)
	}
	return strings.TrimSpace(sb.String())
}
