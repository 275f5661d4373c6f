package jira

import "strings"

// DocFromText converts plain text to an Atlassian Document Format document:
// one paragraph per line, blank lines becoming empty paragraphs. The shape
// is built with maps since ADF requires empty content arrays that struct
// tags cannot express without emitting them on text nodes too.
func DocFromText(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{"type": "doc", "version": 1, "content": []any{}}
	}

	content := []any{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			content = append(content, map[string]any{"type": "paragraph", "content": []any{}})
		} else {
			content = append(content, map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": line},
				},
			})
		}
	}
	return map[string]any{"type": "doc", "version": 1, "content": content}
}
