// ABOUTME: Tests for HTML flattening, body normalization, and reply rendering.

package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToText(t *testing.T) {
	in := `<html><head><style>p{color:red}</style></head>` +
		`<body><p>First line.</p><div>Second line.</div><script>alert(1)</script></body></html>`

	out := HTMLToText(in)
	assert.Contains(t, out, "First line.")
	assert.Contains(t, out, "Second line.")
	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "alert")
}

func TestHTMLToText_BreaksParagraphs(t *testing.T) {
	out := HTMLToText("<p>one</p><p>two</p>")
	assert.Contains(t, out, "\n")
}

func TestNormalize_CutsAtFarewell(t *testing.T) {
	in := "Please unlock my account.\n\nSaludos cordiales,\nAna Pérez\nGerente de TI\nTel: 2222-3333"
	assert.Equal(t, "Please unlock my account.", Normalize(in))
}

func TestNormalize_StripsDisclaimer(t *testing.T) {
	in := "Need the Q3 report.\n\nDISCLAIMER: This message is confidential and intended only for the recipient."
	assert.Equal(t, "Need the Q3 report.", Normalize(in))
}

func TestNormalize_StripsMobileTagAndURLs(t *testing.T) {
	in := "Approve the request at your convenience.\nSent from my iPhone\nhttps://example.com/tracker"
	out := Normalize(in)
	assert.NotContains(t, out, "iPhone")
	assert.NotContains(t, out, "https://")
	assert.Contains(t, out, "Approve the request")
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b\n\nc", Normalize("a  \t b\n\n\n\nc"))
}

func TestRenderReplyHTML(t *testing.T) {
	out, err := RenderReplyHTML("Done. Moved to **Support**.")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Support</strong>")
}
