// Package docfile reads and writes the local {"docs": [...]} transfer file.
package docfile

import (
	"bufio"
	"bytes"
	"couchtransfer/internal/common"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const filePerm = 0o644

// File is a transfer file on the local filesystem.
type File struct {
	Path string
}

// New returns the transfer file at path.
func New(path string) *File {
	return &File{Path: path}
}

type envelope struct {
	Docs []common.Document `json:"docs"`
}

// ReadDocuments parses the whole file and returns its "docs" array. The file must hold a
// JSON object whose "docs" member is an array.
func (f *File) ReadDocuments() ([]common.Document, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: "cannot open file: " + err.Error(), Err: err}
	}
	defer file.Close()

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bufio.NewReader(file))
	if err := dec.Decode(&raw); err != nil {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: "not valid JSON: " + err.Error(), Err: err}
	}
	if dec.More() {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: "unexpected data after the top-level object"}
	}

	docsJSON, ok := raw["docs"]
	if !ok {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: `missing "docs" key`}
	}
	docsJSON = bytes.TrimSpace(docsJSON)
	if len(docsJSON) == 0 || docsJSON[0] != '[' {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: `"docs" must be an array`}
	}

	var docs []common.Document
	if err := json.Unmarshal(docsJSON, &docs); err != nil {
		return nil, &common.InvalidInputError{Path: f.Path, Reason: "cannot decode docs: " + err.Error(), Err: err}
	}
	if docs == nil {
		docs = []common.Document{}
	}
	return docs, nil
}

// WriteDocuments serializes docs as {"docs": [...]} and writes the file in one go,
// replacing any previous content.
func (f *File) WriteDocuments(docs []common.Document) error {
	if docs == nil {
		docs = []common.Document{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{Docs: docs}); err != nil {
		return &common.FileIOError{Op: "encode documents", Path: f.Path, Reason: err.Error(), Err: err}
	}
	if err := os.WriteFile(f.Path, buf.Bytes(), filePerm); err != nil {
		return &common.FileIOError{Op: "write file", Path: f.Path, Reason: err.Error(), Err: err}
	}
	return nil
}

// Exists reports whether something is already present at the file's path.
func (f *File) Exists() (bool, error) {
	_, err := os.Stat(f.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &common.FileIOError{Op: "stat file", Path: f.Path, Reason: err.Error(), Err: err}
	}
}

func (f *File) String() string {
	return fmt.Sprintf("file %s", f.Path)
}
