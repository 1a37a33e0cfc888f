package oracle

import (
	"fmt"
	"strings"
)

func schemaPrompt(objective string) string {
	return fmt.Sprintf(`Objective: %q

You are an expert data architect. Design a JSON Schema for extracting data
that satisfies the objective.

Guidelines:
1. Map the objective to standard entities (Product, Article, JobPosting, Event, Person).
2. The root should describe a list of objects when the objective implies multiple items.
3. Be specific with types: number for prices, boolean for flags. Use snake_case keys.
4. Include fields that are likely relevant even when not asked for explicitly
   (url, image_url, availability alongside name and price).

Return ONLY the valid JSON Schema object. No markdown formatting.`, objective)
}

func relevancePrompt(objective, pageURL, content string, candidates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %q\nURL: %q\n", objective, pageURL)
	fmt.Fprintf(&b, "<content_snippet>\n%s\n</content_snippet>\n", content)

	if len(candidates) > 0 {
		b.WriteString("<candidate_links>\n")
		for _, link := range candidates {
			b.WriteString(link)
			b.WriteByte('\n')
		}
		b.WriteString("</candidate_links>\n")
	}

	b.WriteString(`
1. Is this page relevant to the objective? (true/false)
2. If relevant, explain why briefly (under 15 words).
3. Pick up to 5 of the most relevant links to follow next, preferring pages
   that carry the target data or paginate toward it. Skip navigation
   boilerplate, login pages, and terms of service.

Return JSON format:
{
    "is_relevant": boolean,
    "reason": "string",
    "next_urls": ["url1", "url2"]
}`)
	return b.String()
}

func extractionPrompt(schema, content string) string {
	return fmt.Sprintf(`Extract data from the following content matching this schema:
%s

<content_to_extract>
%s
</content_to_extract>

Rules:
- Adhere strictly to the schema. Normalize prices to numbers, dates to ISO 8601.
- Use the screenshot, when provided, to resolve ambiguity in the markup.
- Do not invent data; omit fields that are truly missing.

Return ONLY valid JSON: an array of extracted records (or a single object).
No markdown formatting.`, schema, content)
}

func titlePrompt(objective, content string) string {
	return fmt.Sprintf(`Objective: %q
<content_snippet>
%s
</content_snippet>

Generate a very concise (2-4 words) session title.
It does not need to be grammatically correct, just descriptive and short.
Example: "Basketball Stats Scrape" or "Nike Shoes Price"

Return ONLY the title text.`, objective, content)
}
