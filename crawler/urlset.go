package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// URLSet backends.
const (
	BackendMemory = "memory"
	BackendBloom  = "bloom"
)

// URLSet records normalized URLs seen during a single crawl.
type URLSet interface {
	// Add inserts url and reports whether it was absent.
	Add(url string) bool
	Has(url string) bool
	Len() int
	Close() error
}

// NewURLSet returns an empty set for the named backend.
func NewURLSet(backend string) (URLSet, error) {
	switch backend {
	case "", BackendMemory:
		return newMemorySet(), nil
	case BackendBloom:
		return NewBloomSet(bloomCapacity, bloomFalsePositiveRate)
	default:
		return nil, fmt.Errorf("unknown visited backend %q", backend)
	}
}

type memorySet struct {
	urls map[string]struct{}
}

func newMemorySet() *memorySet {
	return &memorySet{urls: make(map[string]struct{})}
}

func (s *memorySet) Add(url string) bool {
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

func (s *memorySet) Has(url string) bool {
	_, ok := s.urls[url]
	return ok
}

func (s *memorySet) Len() int { return len(s.urls) }

func (s *memorySet) Close() error { return nil }

const (
	bloomCapacity          = 100000
	bloomFalsePositiveRate = 0.001
	bloomSyncEvery         = 1000
)

// BloomSet is a URLSet backed by a bloom filter mirrored into a
// memory-mapped temp file, for portals too large for an exact set. A false
// positive makes the crawler skip a page; it never causes a page to be
// analyzed twice.
type BloomSet struct {
	mu       sync.Mutex
	filter   *bloom.BloomFilter
	file     *os.File
	mapped   mmap.MMap
	path     string
	added    int
	unsynced int
	syncErr  error
}

// NewBloomSet sizes a filter for capacity URLs at the given false positive
// rate and maps it to a temp file.
func NewBloomSet(capacity uint, fpRate float64) (*BloomSet, error) {
	filter := bloom.NewWithEstimates(capacity, fpRate)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	file, err := os.CreateTemp("", "portalaudit-urls-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create bloom file: %w", err)
	}
	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}

	if err := file.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("size bloom file: %w", err)
	}

	mapped, err := mmap.MapRegion(file, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap bloom file: %w", err)
	}
	copy(mapped, data)

	return &BloomSet{
		filter: filter,
		file:   file,
		mapped: mapped,
		path:   file.Name(),
	}, nil
}

// Add inserts url. It returns false when the filter already reports it,
// which may be a false positive.
func (b *BloomSet) Add(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.filter.TestOrAddString(url) {
		return false
	}
	b.added++
	b.unsynced++
	if b.unsynced >= bloomSyncEvery {
		if err := b.syncLocked(); err != nil {
			b.syncErr = err
		}
	}
	return true
}

// Has reports whether url may have been added.
func (b *BloomSet) Has(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter.TestString(url)
}

// Len returns the number of successful Adds.
func (b *BloomSet) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.added
}

func (b *BloomSet) syncLocked() error {
	data, err := b.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	copy(b.mapped, data)
	if err := b.mapped.Flush(); err != nil {
		return fmt.Errorf("flush bloom file: %w", err)
	}
	b.unsynced = 0
	return nil
}

// Close unmaps and removes the backing file. Errors from periodic syncs are
// reported here.
func (b *BloomSet) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.syncErr != nil {
		errs = append(errs, b.syncErr)
		b.syncErr = nil
	}
	if b.mapped != nil {
		if err := b.mapped.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		b.mapped = nil
	}
	if b.file != nil {
		if err := b.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bloom file: %w", err))
		}
		b.file = nil
	}
	if b.path != "" {
		if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove bloom file: %w", err))
		}
		b.path = ""
	}
	return errors.Join(errs...)
}
