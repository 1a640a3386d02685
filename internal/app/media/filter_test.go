package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterTestItems() []Media {
	return []Media{
		{ID: "tt1", Title: "Laugh Track", Type: "movie", ContentRating: "PG", Genres: []string{"Comedy"}},
		{ID: "tt2", Title: "Grim Tidings", Type: "movie", ContentRating: "R", Genres: []string{"Drama", "Thriller"}},
		{ID: "tt3", Title: "Pilot Episode", Type: "show", ContentRating: "PG", Genres: []string{"Comedy", "Drama"}},
	}
}

func idsOf(items []Media) []string {
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestApplyFiltersNoFilters(t *testing.T) {
	items := filterTestItems()
	assert.Equal(t, items, ApplyFilters(items, nil))
}

func TestApplyFiltersGenreIs(t *testing.T) {
	got := ApplyFilters(filterTestItems(), []Filter{
		{Key: "genre", Operator: "is", Value: []string{"comedy"}},
	})
	assert.Equal(t, []string{"tt1", "tt3"}, idsOf(got), "genre matching is case-insensitive")
}

func TestApplyFiltersIsNot(t *testing.T) {
	got := ApplyFilters(filterTestItems(), []Filter{
		{Key: "type", Operator: "isNot", Value: []string{"show"}},
	})
	assert.Equal(t, []string{"tt1", "tt2"}, idsOf(got))
}

func TestApplyFiltersCombined(t *testing.T) {
	got := ApplyFilters(filterTestItems(), []Filter{
		{Key: "genre", Operator: "is", Value: []string{"Drama"}},
		{Key: "contentRating", Operator: "isNot", Value: []string{"R"}},
	})
	assert.Equal(t, []string{"tt3"}, idsOf(got))
}

func TestApplyFiltersEmptyOperatorMeansIs(t *testing.T) {
	got := ApplyFilters(filterTestItems(), []Filter{
		{Key: "type", Value: []string{"show"}},
	})
	assert.Equal(t, []string{"tt3"}, idsOf(got))
}

func TestApplyFiltersUnknownKeyIsSkipped(t *testing.T) {
	items := filterTestItems()
	got := ApplyFilters(items, []Filter{
		{Key: "studio", Operator: "is", Value: []string{"anything"}},
	})
	assert.Equal(t, items, got, "an unrecognized filter must not narrow the catalog")
}

func TestApplyFiltersCanMatchNothing(t *testing.T) {
	got := ApplyFilters(filterTestItems(), []Filter{
		{Key: "genre", Operator: "is", Value: []string{"western"}},
	})
	assert.Empty(t, got)
}
