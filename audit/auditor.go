package audit

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/portalaudit/result"
)

// maxNodeHTML caps the outer HTML stored per offending node.
const maxNodeHTML = 250

// Auditor sanitizes markup and runs a fixed ruleset against it.
type Auditor struct {
	sanitizer *Sanitizer
	rules     []Rule
}

// New returns an Auditor using DefaultRules.
func New() *Auditor {
	return NewWithRules(DefaultRules())
}

// NewWithRules returns an Auditor running rules in the given order.
func NewWithRules(rules []Rule) *Auditor {
	return &Auditor{
		sanitizer: NewSanitizer(),
		rules:     rules,
	}
}

// Rules returns the ruleset in reporting order.
func (a *Auditor) Rules() []Rule {
	return a.rules
}

// Audit sanitizes markup, materializes it as an isolated fragment and returns
// one Violation per failing rule, in rule order. The raw markup is never
// queried directly. Errors wrap result.ErrAudit.
func (a *Auditor) Audit(ctx context.Context, markup string) ([]result.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", result.ErrAudit, err)
	}

	safe := a.sanitizer.Sanitize(markup)

	violations := []result.Violation{}
	err := withFragment(safe, func(doc *goquery.Document) error {
		for _, rule := range a.rules {
			if err := ctx.Err(); err != nil {
				return err
			}
			offending := rule.Check(doc)
			if len(offending) == 0 {
				continue
			}
			violations = append(violations, result.Violation{
				ID:          rule.ID,
				Impact:      rule.Impact,
				Description: rule.Description,
				Help:        rule.Help,
				HelpURL:     rule.HelpURL(),
				Nodes:       describeNodes(offending),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", result.ErrAudit, err)
	}

	return violations, nil
}

func describeNodes(sels []*goquery.Selection) []result.ViolationNode {
	nodes := make([]result.ViolationNode, 0, len(sels))
	for _, s := range sels {
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			outer = "<" + goquery.NodeName(s) + ">"
		}
		if len(outer) > maxNodeHTML {
			outer = outer[:maxNodeHTML] + "..."
		}
		nodes = append(nodes, result.ViolationNode{HTML: outer, Target: targetOf(s)})
	}
	return nodes
}
