// Package audit sanitizes fetched markup and runs an accessibility ruleset
// against an isolated copy of it.
package audit

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips active content (scripts, styles, frames, plugins, event
// handlers, javascript: URLs) while keeping the structure and attributes the
// ruleset inspects.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer built on the bluemonday UGC policy,
// extended with form controls, landmarks and ARIA attributes.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()

	p.AllowElements("form", "fieldset", "legend", "label", "input", "button",
		"select", "option", "optgroup", "textarea",
		"main", "nav", "header", "footer", "section", "article", "aside")
	p.AllowNoAttrs().OnElements("label", "form", "fieldset", "legend", "main",
		"input", "button", "select", "option", "textarea")

	// Images and links must reach the rules even when their source or
	// target would otherwise be stripped.
	p.AllowNoAttrs().OnElements("img", "a")
	p.AllowDataURIImages()
	p.AllowURLSchemes("mailto", "tel", "http", "https")

	p.AllowAttrs("role", "tabindex",
		"aria-label", "aria-labelledby", "aria-describedby", "aria-hidden",
		"aria-level", "aria-current", "aria-expanded").Globally()

	p.AllowAttrs("type", "name", "value", "placeholder", "alt", "src").OnElements("input")
	p.AllowAttrs("for").OnElements("label")
	p.AllowAttrs("name", "multiple").OnElements("select")
	p.AllowAttrs("value", "selected", "label").OnElements("option")
	p.AllowAttrs("name", "rows", "cols").OnElements("textarea")
	p.AllowAttrs("type", "name", "value").OnElements("button")
	p.AllowAttrs("scope", "headers").OnElements("th", "td")

	return &Sanitizer{policy: p}
}

// Sanitize returns a safe copy of markup. The result is a body-level
// fragment: document-level wrappers such as <html>, <head> and <body> are
// dropped.
func (s *Sanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}
