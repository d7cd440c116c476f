package notion

import (
	"regexp"
	"strings"
)

// maxBlocksPerRequest is the Notion API limit on children per request.
const maxBlocksPerRequest = 100

var numberedItem = regexp.MustCompile(`^\d+\. `)

type block = map[string]any

func richText(content string) []any {
	return []any{map[string]any{"type": "text", "text": map[string]any{"content": content}}}
}

func textBlock(blockType, content string) block {
	return block{
		"object":  "block",
		"type":    blockType,
		blockType: map[string]any{"rich_text": richText(content)},
	}
}

// MarkdownToBlocks converts Markdown into Notion block objects, line by
// line: headings 1-3, bulleted and numbered list items, quotes and
// paragraphs. Blank lines become empty paragraphs so spacing survives.
// Output is capped at the API's per-request block limit.
func MarkdownToBlocks(markdown string) []block {
	lines := strings.Split(markdown, "\n")
	blocks := make([]block, 0, len(lines))

	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			blocks = append(blocks, block{
				"object":    "block",
				"type":      "paragraph",
				"paragraph": map[string]any{"rich_text": []any{}},
			})
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, textBlock("heading_3", line[len("### "):]))
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, textBlock("heading_2", line[len("## "):]))
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, textBlock("heading_1", line[len("# "):]))
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			blocks = append(blocks, textBlock("bulleted_list_item", line[2:]))
		case numberedItem.MatchString(line):
			blocks = append(blocks, textBlock("numbered_list_item", numberedItem.ReplaceAllString(line, "")))
		case strings.HasPrefix(line, "> "):
			blocks = append(blocks, textBlock("quote", line[len("> "):]))
		default:
			blocks = append(blocks, textBlock("paragraph", line))
		}
	}

	if len(blocks) > maxBlocksPerRequest {
		blocks = blocks[:maxBlocksPerRequest]
	}
	return blocks
}
