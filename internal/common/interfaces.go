package common

import (
	"context"
	"encoding/json"
)

// Document is an opaque JSON document. Its content is carried unchanged between the
// local file and the document store (only insignificant whitespace is compacted), so
// revision metadata survives a round trip.
type Document = json.RawMessage

// Row is one entry of a paged listing.
type Row struct {
	ID  string   `json:"id"`
	Key string   `json:"key"`
	Doc Document `json:"doc"`
}

// Page is the result of a paged listing request.
type Page struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int64 `json:"offset"`
	Rows      []Row `json:"rows"`
}

// Source is the read side of the document store used by the exporter.
type Source interface {
	// DocumentCount returns the number of documents in the collection.
	DocumentCount(ctx context.Context) (int64, error)
	// ListDocuments returns up to limit documents starting at skip.
	ListDocuments(ctx context.Context, limit, skip int) (*Page, error)
}

// Destination is the write side of the document store used by the importer.
type Destination interface {
	// CreateCollection creates the collection. An already existing collection is not an error.
	CreateCollection(ctx context.Context) error
	// BulkWrite applies docs in one request.
	BulkWrite(ctx context.Context, docs []Document, newEdits bool) error
}

// DocumentReader reads the full document sequence from the local file.
type DocumentReader interface {
	ReadDocuments() ([]Document, error)
}

// DocumentWriter writes the full document sequence to the local file.
type DocumentWriter interface {
	WriteDocuments(docs []Document) error
}

// ConfigProvider is the interface for providing configuration settings.
type ConfigProvider interface {
	GetBaseURL() string
	GetUser() string
	GetPassword() string
	GetDatabase() string
}
