// Package jurisdiction owns the naming rules that tie a city to its slice of
// the legal corpus. Ingestion writes under Namespace(city) and analysis reads
// from the same place, so both sides must go through here.
package jurisdiction

import (
	"strings"
	"unicode"
)

// Known jurisdictions with ingested legal corpora, keyed by namespace.
var known = map[string]string{
	"london":   "London",
	"new-york": "New York",
}

// Namespace returns the vector-index namespace for a city name.
// "New York", "new york" and " NEW-YORK " all map to "new-york".
func Namespace(city string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(city), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	}), "-")
}

// DisplayName renders a city for prompts and progress messages.
func DisplayName(city string) string {
	ns := Namespace(city)
	if name, ok := known[ns]; ok {
		return name
	}
	words := strings.Split(ns, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// IsKnown reports whether a corpus exists for the city.
func IsKnown(city string) bool {
	_, ok := known[Namespace(city)]
	return ok
}

// Known lists the namespaces of every supported jurisdiction.
func Known() []string {
	out := make([]string, 0, len(known))
	for ns := range known {
		out = append(out, ns)
	}
	return out
}
