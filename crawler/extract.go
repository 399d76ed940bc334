package crawler

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/lukemcguire/portalaudit/urlutil"
)

// ExtractLinks returns the href of every anchor in body, resolved against
// baseURL, restricted to http(s), normalized and deduplicated in document
// order. Hrefs that cannot be parsed or normalized are skipped; the returned
// error summarizes them and never means the link list is unusable.
func ExtractLinks(body io.Reader, baseURL *url.URL) ([]string, error) {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]bool)
	var links []string
	var errs []error

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && !errors.Is(err, io.EOF) {
				errs = append(errs, fmt.Errorf("tokenize: %w", err))
			}
			if len(errs) > 0 {
				return links, fmt.Errorf("skipped %d links (first: %w)", len(errs), errs[0])
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			href, ok := hrefOf(tokenizer)
			if !ok {
				continue
			}
			link, err := resolveLink(baseURL, href)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}
	}
}

func hrefOf(z *html.Tokenizer) (string, bool) {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "href" {
			return strings.TrimSpace(string(val)), true
		}
		if !more {
			return "", false
		}
	}
}

// resolveLink returns "" for links that are valid but not crawlable.
func resolveLink(baseURL *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	resolved := baseURL.ResolveReference(ref).String()
	if !urlutil.IsHTTPScheme(resolved) {
		return "", nil
	}
	normalized, err := urlutil.Normalize(resolved)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", resolved, err)
	}
	// url.URL drops an empty fragment when printed; keep the marker so the
	// link is still recognized as a fragment link.
	if ref.Fragment == "" && strings.Contains(href, "#") {
		normalized += "#"
	}
	return normalized, nil
}
