/*
Package i18n serves the localized UI string tables clients request via
setLocale. Locale tables are embedded JSON files; requested locales are
resolved with golang.org/x/text language matching, falling back to English
for anything unknown.
*/
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLocale is the fallback for unknown or malformed language tags.
const DefaultLocale = "en"

// Translator resolves a requested language tag to the best available string table.
type Translator struct {
	tables  map[string]map[string]string
	matcher language.Matcher
	tags    []language.Tag
}

// NewTranslator loads every embedded locale table. It fails if the embedded
// data is unreadable or the default locale is missing, both of which are
// packaging mistakes rather than runtime conditions.
func NewTranslator() (*Translator, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	t := &Translator{tables: make(map[string]map[string]string)}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))

		raw, err := localeFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %q: %w", name, err)
		}

		table := make(map[string]string)
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("failed to parse locale %q: %w", name, err)
		}

		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("embedded locale %q has an invalid tag: %w", name, err)
		}

		t.tables[name] = table
		t.tags = append(t.tags, tag)
	}

	if _, ok := t.tables[DefaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q is missing from the embedded tables", DefaultLocale)
	}

	// The matcher prefers earlier tags on ties; make sure the default leads.
	ordered := []language.Tag{language.Make(DefaultLocale)}
	for _, tag := range t.tags {
		if tag.String() != DefaultLocale {
			ordered = append(ordered, tag)
		}
	}
	t.tags = ordered
	t.matcher = language.NewMatcher(ordered)

	return t, nil
}

// TranslationsFor returns the string table best matching the requested
// language tag (an Accept-Language style value), plus the locale actually
// chosen. Unparseable input resolves to the default locale.
func (t *Translator) TranslationsFor(requested string) (map[string]string, string) {
	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		return t.tables[DefaultLocale], DefaultLocale
	}

	_, index, _ := t.matcher.Match(tags...)
	chosen := t.tags[index].String()

	table, ok := t.tables[chosen]
	if !ok {
		// Matcher may return a region-refined tag like en-US; reduce to base.
		base, _ := t.tags[index].Base()
		chosen = base.String()
		table, ok = t.tables[chosen]
		if !ok {
			return t.tables[DefaultLocale], DefaultLocale
		}
	}

	return table, chosen
}

// Locales lists the locales available, default first.
func (t *Translator) Locales() []string {
	out := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, tag.String())
	}
	return out
}
