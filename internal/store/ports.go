// Package store defines the gateway to the backing document collection.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"expensedash/internal/core"
)

// Gateway is the only component that talks to the backing store. Collections
// are addressed by name; each implementation resolves its own handle.
type Gateway interface {
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// FetchAll returns every document in the collection in store-native order.
	FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error)
	// Insert appends doc and returns the id assigned by the store.
	Insert(ctx context.Context, collection string, doc core.Document) (string, error)
	// Delete removes the document with the given id. Deleting an unknown id
	// is not an error and reports false.
	Delete(ctx context.Context, collection, id string) (bool, error)
	Close() error
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateCollection rejects names that cannot be used as a table key, hash
// key or sheet title by every backend.
func ValidateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return core.Errorf(core.KindConfiguration, "store", "invalid collection name %q", name)
	}
	return nil
}

// EncodeDocument serializes doc for backends that persist JSON.
func EncodeDocument(doc core.Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// DecodeDocument parses a JSON body, keeping numbers as json.Number.
func DecodeDocument(body []byte) (core.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	doc := core.Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
