package scraper

import (
	"sort"
	"strings"
)

// Registry maps store names to their extraction capability. Lookups are
// case-insensitive; an unknown store is an explicit miss the caller handles
// as a skip.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// Register binds an extractor to a store name, replacing any previous
// binding for the same name.
func (r *Registry) Register(storeName string, extractor Extractor) {
	r.extractors[strings.ToLower(storeName)] = extractor
}

// Lookup resolves a store name to its extractor.
func (r *Registry) Lookup(storeName string) (Extractor, bool) {
	extractor, ok := r.extractors[strings.ToLower(storeName)]
	return extractor, ok
}

// Names lists the registered store names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
