package media

import "strings"

// Filter narrows a room's candidate list. Key selects the media attribute,
// Operator is "is" or "isNot", and Value lists the accepted (or rejected)
// attribute values.
type Filter struct {
	Key      string   `json:"key"`
	Operator string   `json:"operator"`
	Value    []string `json:"value"`
}

// ApplyFilters returns the items that satisfy every filter. Unknown keys and
// operators match nothing they shouldn't: an unrecognized filter is skipped so
// a newer client cannot blank out the whole catalog for everyone else.
func ApplyFilters(items []Media, filters []Filter) []Media {
	if len(filters) == 0 {
		return items
	}

	out := make([]Media, 0, len(items))
	for _, m := range items {
		if matchesAll(m, filters) {
			out = append(out, m)
		}
	}
	return out
}

func matchesAll(m Media, filters []Filter) bool {
	for _, f := range filters {
		values := attributeValues(m, f.Key)
		if values == nil {
			continue
		}

		switch f.Operator {
		case "is", "":
			if !intersects(values, f.Value) {
				return false
			}
		case "isNot":
			if intersects(values, f.Value) {
				return false
			}
		}
	}
	return true
}

// attributeValues maps a filter key onto the media attribute it inspects.
// A nil return marks the key as unrecognized.
func attributeValues(m Media, key string) []string {
	switch key {
	case "genre":
		return m.Genres
	case "type":
		return []string{m.Type}
	case "contentRating":
		return []string{m.ContentRating}
	default:
		return nil
	}
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
