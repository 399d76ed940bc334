package crawler

import "github.com/lukemcguire/portalaudit/result"

// CrawlEvent reports the outcome of one processed page.
type CrawlEvent struct {
	Seed          string
	URL           string
	Depth         int
	Violations    int // violations on this page
	Error         string
	ErrorCategory result.ErrorCategory
	Analyzed      int // pages analyzed so far in this crawl
	Failed        int // pages that failed so far in this crawl
}
