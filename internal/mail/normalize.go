// ABOUTME: Email body normalization: HTML flattening and signature stripping.
// ABOUTME: Produces the plain text a notification run seeds the oracle with.

package mail

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// farewellPatterns mark where the written content ends. Everything from
// the earliest match onward is dropped.
var farewellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)saludos cordiales`),
	regexp.MustCompile(`(?i)atentamente`),
	regexp.MustCompile(`(?i)cordialmente`),
	regexp.MustCompile(`(?i)quedo atento`),
	regexp.MustCompile(`(?i)quedamos atentos`),
	regexp.MustCompile(`(?i)best regards`),
	regexp.MustCompile(`(?i)kind regards`),
}

// signaturePatterns remove residual signature and disclaimer fragments
// that survive the farewell cut.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)DISCLAIMER\s*[:/].*`),
	regexp.MustCompile(`(?is)AVISO\s+LEGAL:.*`),
	regexp.MustCompile(`(?is)(?:este mensaje|this message|this email).{0,120}?(?:confidencial|confidential|privileged).*`),
	regexp.MustCompile(`(?im)^(?:tel|cel|phone|t)[:.]?\s*[\d\-+() ]{6,}$`),
	regexp.MustCompile(`(?i)(?:enviado desde|sent from) (?:mi|my) \S+.*`),
	regexp.MustCompile(`(?:www\.|https?://)\S+`),
	regexp.MustCompile(`[─━═_-]{3,}`),
}

// blockTags get a newline when flattening HTML so paragraphs survive.
var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// skipTags contribute no visible text.
var skipTags = map[string]bool{
	"style": true, "script": true, "head": true, "title": true,
}

// HTMLToText flattens an HTML body into readable plain text.
func HTMLToText(htmlBody string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlBody))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && tt == html.StartTagToken {
				skipDepth++
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Normalize strips signatures, disclaimers, and noise from a plain-text
// body and collapses whitespace.
func Normalize(text string) string {
	cleaned := text

	// Cut at the earliest farewell.
	cut := len(cleaned)
	for _, re := range farewellPatterns {
		if loc := re.FindStringIndex(cleaned); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	cleaned = cleaned[:cut]

	for _, re := range signaturePatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = regexp.MustCompile(`[ \t]+`).ReplaceAllString(cleaned, " ")
	cleaned = regexp.MustCompile(`\n{3,}`).ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
