package provider

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Registry holds the ordered list of adapters the source chain walks.
// Order is priority order: the first adapter to deliver a structurally
// valid, non-empty table wins.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry with the given priority order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Adapters returns the adapters in priority order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// DisplayName renders a provider identifier for reports and logs.
func DisplayName(name string) string {
	caser := cases.Title(language.English)
	return caser.String(strings.ToLower(name))
}
