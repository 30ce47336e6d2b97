// ABOUTME: Renders the oracle's markdown answer into HTML for reply bodies.

package mail

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var replyRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderReplyHTML converts a markdown answer into an HTML reply body.
func RenderReplyHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := replyRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering reply: %w", err)
	}
	return buf.String(), nil
}
