// Package i18n holds the translated strings for every supported locale.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var catalogFS embed.FS

// Translator looks up dotted keys in per-locale catalogs
type Translator struct {
	defaultLocale string
	catalogs      map[string]map[string]string
}

// New loads the embedded catalogs
func New(defaultLocale string) (*Translator, error) {
	entries, err := catalogFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	t := &Translator{
		defaultLocale: defaultLocale,
		catalogs:      make(map[string]map[string]string),
	}
	for _, entry := range entries {
		name := entry.Name()
		if path.Ext(name) != ".yaml" {
			continue
		}
		data, err := catalogFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, err
		}

		var tree map[string]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		t.catalogs[strings.TrimSuffix(name, ".yaml")] = flat
	}

	if _, ok := t.catalogs[defaultLocale]; !ok {
		return nil, fmt.Errorf("no catalog for default locale %q", defaultLocale)
	}
	return t, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Translate returns the message for key in locale with {param} placeholders
// replaced. Missing keys fall back to the default locale and then to the key itself.
func (t *Translator) Translate(locale, key string, params map[string]string) string {
	msg, ok := t.catalogs[locale][key]
	if !ok {
		msg, ok = t.catalogs[t.defaultLocale][key]
	}
	if !ok {
		return key
	}
	for name, value := range params {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// Has reports whether locale defines key itself
func (t *Translator) Has(locale, key string) bool {
	_, ok := t.catalogs[locale][key]
	return ok
}

// Locales lists the locales with a catalog
func (t *Translator) Locales() []string {
	out := make([]string, 0, len(t.catalogs))
	for loc := range t.catalogs {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// MissingKeys lists keys of the default catalog that locale does not define
func (t *Translator) MissingKeys(locale string) []string {
	var missing []string
	for key := range t.catalogs[t.defaultLocale] {
		if _, ok := t.catalogs[locale][key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
