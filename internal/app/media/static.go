package media

import "context"

// StaticCatalog is a CatalogProvider over a fixed in-memory list. It backs the
// unconfigured server (empty list) and tests.
type StaticCatalog struct {
	Items []Media
}

// MediaForRoom returns the items narrowed by filters.
func (s *StaticCatalog) MediaForRoom(_ context.Context, filters []Filter) ([]Media, error) {
	return ApplyFilters(s.Items, filters), nil
}
