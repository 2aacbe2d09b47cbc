// Package chunk holds the offset and partition arithmetic shared by export and import.
package chunk

import (
	"fmt"

	"github.com/samber/lo"
)

const (
	// DefaultPageSize is the number of documents requested per listing page on export.
	DefaultPageSize = 250
	// DefaultBatchSize is the number of documents sent per bulk write on import.
	DefaultBatchSize = 50
)

// Page addresses one bounded slice of a remote listing.
type Page struct {
	Index  int
	Offset int
	Limit  int
}

func (p Page) String() string {
	return fmt.Sprintf("page %d (skip=%d, limit=%d)", p.Index, p.Offset, p.Limit)
}

// PageCount returns the number of pages needed to cover total documents, ceil(total/size).
func PageCount(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Pages returns the page cursors covering total documents. Offsets grow by size and
// every page requests a full size; the last page may come back shorter or empty.
func Pages(total int64, size int) []Page {
	n := PageCount(total, size)
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Index: i, Offset: i * size, Limit: size}
	}
	return pages
}

// Split partitions docs into contiguous batches of at most size elements.
// A non-positive size yields a single batch.
func Split[T any](docs []T, size int) [][]T {
	if len(docs) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(docs)
	}
	return lo.Chunk(docs, size)
}
