package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const helpURLBase = "https://dequeuniversity.com/rules/axe/4.10/"

// Impact levels, from least to most severe.
const (
	ImpactMinor    = "minor"
	ImpactModerate = "moderate"
	ImpactSerious  = "serious"
	ImpactCritical = "critical"
)

// Rule is one accessibility check. Check returns the offending elements.
type Rule struct {
	ID          string
	Impact      string
	Description string
	Help        string
	Check       func(doc *goquery.Document) []*goquery.Selection
}

// HelpURL returns the reference documentation for the rule.
func (r Rule) HelpURL() string {
	return helpURLBase + r.ID
}

// DefaultRules returns the fixed ruleset in reporting order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "image-alt",
			Impact:      ImpactCritical,
			Description: "Ensures <img> elements have alternate text or a role of none or presentation",
			Help:        "Images must have alternate text",
			Check:       checkImageAlt,
		},
		{
			ID:          "input-image-alt",
			Impact:      ImpactCritical,
			Description: "Ensures <input type=\"image\"> elements have alternate text",
			Help:        "Image buttons must have alternate text",
			Check:       checkInputImageAlt,
		},
		{
			ID:          "link-name",
			Impact:      ImpactSerious,
			Description: "Ensures links have discernible text",
			Help:        "Links must have discernible text",
			Check:       checkLinkName,
		},
		{
			ID:          "button-name",
			Impact:      ImpactCritical,
			Description: "Ensures buttons have discernible text",
			Help:        "Buttons must have discernible text",
			Check:       checkButtonName,
		},
		{
			ID:          "label",
			Impact:      ImpactCritical,
			Description: "Ensures every form element has a label",
			Help:        "Form elements must have labels",
			Check:       checkLabel,
		},
		{
			ID:          "select-name",
			Impact:      ImpactCritical,
			Description: "Ensures select element has an accessible name",
			Help:        "Select element must have an accessible name",
			Check:       checkSelectName,
		},
		{
			ID:          "empty-heading",
			Impact:      ImpactMinor,
			Description: "Ensures headings have discernible text",
			Help:        "Headings should not be empty",
			Check:       checkEmptyHeading,
		},
		{
			ID:          "heading-order",
			Impact:      ImpactModerate,
			Description: "Ensures the order of headings is semantically correct",
			Help:        "Heading levels should only increase by one",
			Check:       checkHeadingOrder,
		},
		{
			ID:          "duplicate-id",
			Impact:      ImpactMinor,
			Description: "Ensures every id attribute value is unique",
			Help:        "id attribute value must be unique",
			Check:       checkDuplicateID,
		},
		{
			ID:          "list",
			Impact:      ImpactSerious,
			Description: "Ensures that lists are structured correctly",
			Help:        "<ul> and <ol> must only directly contain <li>, <script> or <template> elements",
			Check:       checkList,
		},
		{
			ID:          "listitem",
			Impact:      ImpactSerious,
			Description: "Ensures <li> elements are used semantically",
			Help:        "<li> elements must be contained in a <ul> or <ol>",
			Check:       checkListItem,
		},
		{
			ID:          "tabindex",
			Impact:      ImpactSerious,
			Description: "Ensures tabindex attribute values are not greater than 0",
			Help:        "Elements should not have tabindex greater than zero",
			Check:       checkTabindex,
		},
	}
}

func checkImageAlt(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("alt"); ok {
			return
		}
		if isPresentational(s) || hasAriaName(s) || nonEmptyAttr(s, "title") {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

func checkInputImageAlt(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		if inputType(s) != "image" {
			return
		}
		if nonEmptyAttr(s, "alt") || hasAriaName(s) || nonEmptyAttr(s, "title") {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

func checkLinkName(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if hasAriaName(s) || nonEmptyAttr(s, "title") || hasVisibleText(s) || hasImageWithAlt(s) {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

func checkButtonName(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		if hasAriaName(s) || nonEmptyAttr(s, "title") || hasVisibleText(s) || hasImageWithAlt(s) {
			return
		}
		bad = append(bad, s)
	})
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		if inputType(s) != "button" {
			return
		}
		if nonEmptyAttr(s, "value") || hasAriaName(s) || nonEmptyAttr(s, "title") {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

// unlabelledTypes are input types that do not need a <label>.
var unlabelledTypes = map[string]bool{
	"hidden": true, "button": true, "submit": true, "reset": true, "image": true,
}

func checkLabel(doc *goquery.Document) []*goquery.Selection {
	labelled := labelTargets(doc)
	var bad []*goquery.Selection
	doc.Find("input, textarea").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" && unlabelledTypes[inputType(s)] {
			return
		}
		if !hasFormLabel(s, labelled) {
			bad = append(bad, s)
		}
	})
	return bad
}

func checkSelectName(doc *goquery.Document) []*goquery.Selection {
	labelled := labelTargets(doc)
	var bad []*goquery.Selection
	doc.Find("select").Each(func(_ int, s *goquery.Selection) {
		if !hasFormLabel(s, labelled) {
			bad = append(bad, s)
		}
	})
	return bad
}

func checkEmptyHeading(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	eachHeading(doc, func(s *goquery.Selection, _ int) {
		if hasAriaName(s) || hasVisibleText(s) || hasImageWithAlt(s) {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

func checkHeadingOrder(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	prev := 0
	eachHeading(doc, func(s *goquery.Selection, level int) {
		if prev != 0 && level > prev+1 {
			bad = append(bad, s)
		}
		prev = level
	})
	return bad
}

func checkDuplicateID(doc *goquery.Document) []*goquery.Selection {
	seen := make(map[string]bool)
	var bad []*goquery.Selection
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("id", ""))
		if id == "" {
			return
		}
		if seen[id] {
			bad = append(bad, s)
			return
		}
		seen[id] = true
	})
	return bad
}

func checkList(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("role"); ok {
			return
		}
		invalid := s.Children().FilterFunction(func(_ int, c *goquery.Selection) bool {
			switch goquery.NodeName(c) {
			case "li", "script", "template":
				return false
			}
			return true
		})
		if invalid.Length() > 0 {
			bad = append(bad, s)
		}
	})
	return bad
}

func checkListItem(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		parent := s.Parent()
		switch goquery.NodeName(parent) {
		case "ul", "ol", "menu":
			return
		}
		if strings.EqualFold(parent.AttrOr("role", ""), "list") {
			return
		}
		bad = append(bad, s)
	})
	return bad
}

func checkTabindex(doc *goquery.Document) []*goquery.Selection {
	var bad []*goquery.Selection
	doc.Find("[tabindex]").Each(func(_ int, s *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(s.AttrOr("tabindex", "")))
		if err == nil && n > 0 {
			bad = append(bad, s)
		}
	})
	return bad
}

// eachHeading walks h1-h6 and role=heading elements in document order.
func eachHeading(doc *goquery.Document, fn func(s *goquery.Selection, level int)) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if level := headingLevel(s); level > 0 {
			fn(s, level)
		}
	})
}

func headingLevel(s *goquery.Selection) int {
	name := goquery.NodeName(s)
	if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
		return int(name[1] - '0')
	}
	if strings.EqualFold(s.AttrOr("role", ""), "heading") {
		if level, err := strconv.Atoi(s.AttrOr("aria-level", "2")); err == nil && level > 0 {
			return level
		}
		return 2
	}
	return 0
}

// labelTargets collects the ids referenced by <label for="...">.
func labelTargets(doc *goquery.Document) map[string]bool {
	targets := make(map[string]bool)
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if hasVisibleText(s) {
			targets[s.AttrOr("for", "")] = true
		}
	})
	return targets
}

func hasFormLabel(s *goquery.Selection, labelled map[string]bool) bool {
	if hasAriaName(s) || nonEmptyAttr(s, "title") {
		return true
	}
	if id := s.AttrOr("id", ""); id != "" && labelled[id] {
		return true
	}
	return s.Closest("label").Length() > 0
}

func inputType(s *goquery.Selection) string {
	return strings.ToLower(strings.TrimSpace(s.AttrOr("type", "text")))
}

func isPresentational(s *goquery.Selection) bool {
	role := strings.ToLower(strings.TrimSpace(s.AttrOr("role", "")))
	return role == "none" || role == "presentation"
}

func hasAriaName(s *goquery.Selection) bool {
	return nonEmptyAttr(s, "aria-label") || nonEmptyAttr(s, "aria-labelledby")
}

func nonEmptyAttr(s *goquery.Selection, name string) bool {
	return strings.TrimSpace(s.AttrOr(name, "")) != ""
}

func hasVisibleText(s *goquery.Selection) bool {
	return strings.TrimSpace(s.Text()) != ""
}

func hasImageWithAlt(s *goquery.Selection) bool {
	found := false
	s.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if nonEmptyAttr(img, "alt") {
			found = true
			return false
		}
		return true
	})
	return found
}

// targetOf builds a selector-like path from the fragment root to the node,
// e.g. "main > ul:nth-of-type(2) > li:nth-of-type(1)" or "#search".
func targetOf(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var parts []string
	for n := s.Get(0); n != nil && n.Parent != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if id := attr(n, "id"); id != "" {
			parts = append(parts, n.Data+"#"+id)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", n.Data, typeIndex(n)))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func typeIndex(n *html.Node) int {
	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			idx++
		}
	}
	return idx
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
