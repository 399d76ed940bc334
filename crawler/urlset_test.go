package crawler_test

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/lukemcguire/portalaudit/crawler"
)

func TestURLSetBackends(t *testing.T) {
	for _, backend := range []string{crawler.BackendMemory, crawler.BackendBloom} {
		t.Run(backend, func(t *testing.T) {
			set, err := crawler.NewURLSet(backend)
			if err != nil {
				t.Fatalf("NewURLSet(%q) error: %v", backend, err)
			}
			defer func() {
				if err := set.Close(); err != nil {
					t.Errorf("Close() error: %v", err)
				}
			}()

			const page = "https://www.zaragoza.es/sede/portal/etopia/agenda"

			if set.Has(page) {
				t.Error("Has() = true on an empty set")
			}
			if !set.Add(page) {
				t.Error("first Add() = false, want true")
			}
			if set.Add(page) {
				t.Error("second Add() = true, want false")
			}
			if !set.Has(page) {
				t.Error("Has() = false after Add()")
			}
			if set.Len() != 1 {
				t.Errorf("Len() = %d, want 1", set.Len())
			}
		})
	}
}

func TestNewURLSetUnknownBackend(t *testing.T) {
	if _, err := crawler.NewURLSet("cassandra"); err == nil {
		t.Error("NewURLSet() should reject an unknown backend")
	}
}

func TestBloomSetManyURLs(t *testing.T) {
	set, err := crawler.NewBloomSet(10000, 0.001)
	if err != nil {
		t.Fatalf("NewBloomSet() error: %v", err)
	}
	defer func() { _ = set.Close() }()

	// Crosses the periodic sync threshold.
	for i := range 2500 {
		set.Add(fmt.Sprintf("https://www.zaragoza.es/sede/portal/etopia/p%d", i))
	}
	for i := range 2500 {
		u := fmt.Sprintf("https://www.zaragoza.es/sede/portal/etopia/p%d", i)
		if !set.Has(u) {
			t.Fatalf("Has(%q) = false; bloom filters have no false negatives", u)
		}
	}
}

func TestBloomSetCloseRemovesFile(t *testing.T) {
	before := bloomFiles(t)

	set, err := crawler.NewBloomSet(1000, 0.01)
	if err != nil {
		t.Fatalf("NewBloomSet() error: %v", err)
	}
	if len(bloomFiles(t)) != len(before)+1 {
		t.Fatal("expected a backing file while the set is open")
	}

	if err := set.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := set.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if len(bloomFiles(t)) != len(before) {
		t.Error("backing file left behind after Close()")
	}
}

func bloomFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "portalaudit-urls-") {
			names = append(names, e.Name())
		}
	}
	return names
}
