package audit

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment is a detached container holding one page's sanitized markup.
// Each audit gets a fresh Fragment; nothing is shared between pages.
type Fragment struct {
	root *html.Node
	doc  *goquery.Document
}

// NewFragment parses markup as the inner HTML of a fresh, parentless <div>.
func NewFragment(markup string) (*Fragment, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}

	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	return &Fragment{root: root, doc: goquery.NewDocumentFromNode(root)}, nil
}

// Document returns the queryable view of the fragment, or nil once released.
func (f *Fragment) Document() *goquery.Document {
	return f.doc
}

// Released reports whether Release has been called.
func (f *Fragment) Released() bool {
	return f.root == nil
}

// Release detaches every node from the container. Safe to call twice.
func (f *Fragment) Release() {
	if f.root == nil {
		return
	}
	for c := f.root.FirstChild; c != nil; {
		next := c.NextSibling
		f.root.RemoveChild(c)
		c = next
	}
	f.root = nil
	f.doc = nil
}

// withFragment builds a fragment from markup, hands it to fn and releases it
// afterwards, including when fn returns an error or panics.
func withFragment(markup string, fn func(*goquery.Document) error) (err error) {
	frag, err := NewFragment(markup)
	if err != nil {
		return err
	}
	defer frag.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit panicked: %v", r)
		}
	}()

	return fn(frag.Document())
}
