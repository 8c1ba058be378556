package content

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Markdown converts chapter markup to Markdown. Only the body is converted.
func Markdown(markup string) (string, error) {
	doc, err := parseMarkup(markup)
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	markdownBytes, err := htmltomarkdown.ConvertNode(root.Get(0))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(string(markdownBytes)) + "\n", nil
}
