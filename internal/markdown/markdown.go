// Package markdown turns note content into HTML.
//
// Render is a small ordered sequence of regexp substitutions. The passes are
// not idempotent and later passes see the output of earlier ones, so a '*'
// left inside converted markup may be picked up again by the italic pass.
// Render output is untrusted; everything shown to a browser goes through
// ToHTML, which sanitises it with an allowlist policy.
package markdown

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

type pass struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: headers, bold, italic, list items, inline code, line breaks.
var passes = []pass{
	{regexp.MustCompile(`(?m)^### (.*)$`), "<h3>${1}</h3>"},
	{regexp.MustCompile(`(?m)^## (.*)$`), "<h2>${1}</h2>"},
	{regexp.MustCompile(`(?m)^# (.*)$`), "<h1>${1}</h1>"},
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>${1}</strong>"},
	{regexp.MustCompile(`\*(.*?)\*`), "<em>${1}</em>"},
	{regexp.MustCompile(`(?m)^- (.*)$`), "<li>${1}</li>"},
	{regexp.MustCompile(`(<li>.*</li>)`), "<ul>${1}</ul>"},
	{regexp.MustCompile("`(.*?)`"), "<code>${1}</code>"},
	{regexp.MustCompile(`\n`), "<br>"},
}

// Render converts the Markdown subset to raw, unsanitised HTML.
func Render(src string) string {
	out := strings.ReplaceAll(src, "\r\n", "\n")
	for _, p := range passes {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
	})
	return policy
}

// Sanitize strips everything outside the user-generated-content allowlist
// (scripts, event handlers, javascript: URLs, styles).
func Sanitize(html string) string {
	return sanitizer().Sanitize(html)
}

// ToHTML renders src and sanitises the result. It is safe to embed in a page.
func ToHTML(src string) string {
	return Sanitize(Render(src))
}
