// Package backend defines the contract the catalog uses to manage collections in an
// external store, and a registry that builds concrete backends from connection
// parameters by type name.
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tansive/sensorthings/internal/common/apperrors"
)

// Item is a single entity as a JSON-like mapping.
type Item = map[string]any

// Method selects what UpsertCollectionItems does with each item.
type Method string

const (
	MethodPost   Method = "POST"   // create
	MethodPatch  Method = "PATCH"  // update in place
	MethodDelete Method = "DELETE" // remove
)

// ParseMethod checks s against the supported methods. Names are matched exactly; an
// empty string selects MethodPost.
func ParseMethod(s string) (Method, apperrors.Error) {
	switch m := Method(s); m {
	case "":
		return MethodPost, nil
	case MethodPost, MethodPatch, MethodDelete:
		return m, nil
	default:
		return "", ErrInvalidArgument.Msg(fmt.Sprintf("unsupported method: %s", s))
	}
}

// Backend manages collections and their items in an external store. Collection IDs are
// dotted names; how they map to the store is up to the implementation.
//
// Boolean results report soft failures: the store answered but the operation did not
// succeed. Errors are reserved for invalid calls and for failures that prevent an
// operation from being attempted.
type Backend interface {
	// Type returns the registry name of the backend.
	Type() string

	// AddCollection creates a collection.
	AddCollection(ctx context.Context, collectionID string) error

	// DeleteCollection removes every item in the collection.
	DeleteCollection(ctx context.Context, collectionID string) (bool, error)

	// HasCollection reports whether the collection exists.
	HasCollection(ctx context.Context, collectionID string) (bool, error)

	// UpsertCollectionItems applies method to each item in order, stopping at the first
	// failure.
	UpsertCollectionItems(ctx context.Context, collectionID string, items []Item, method Method) (bool, error)

	// DeleteCollectionItem removes a single item. Failures are logged, not returned.
	DeleteCollectionItem(ctx context.Context, collectionID string, itemID string) bool
}

// Constructor builds a backend from connection parameters.
type Constructor func(ctx context.Context, defs map[string]any) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

type registration struct {
	name string
	ctor Constructor
}

// Register makes a backend available to New under typeName. Names are matched without
// regard to case. Registering the same name twice panics.
func Register(typeName string, ctor Constructor) {
	key := strings.ToLower(typeName)
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[key]; ok {
		panic("backend: Register called twice for " + typeName)
	}
	registry[key] = registration{name: typeName, ctor: ctor}
}

// New builds the backend registered under typeName.
func New(ctx context.Context, typeName string, defs map[string]any) (Backend, error) {
	registryMu.RLock()
	r, ok := registry[strings.ToLower(strings.TrimSpace(typeName))]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownBackend.Msg(fmt.Sprintf("unknown backend type: %q", typeName))
	}
	return r.ctor(ctx, defs)
}

// Types lists registered backend names in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.name)
	}
	sort.Strings(names)
	return names
}
