package spotter

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// Entry lists the surface forms that count toward one root keyword.
type Entry struct {
	Root  string
	Forms []string
}

// SurfaceForms returns the keyword, its plural, its possessive singular and
// its possessive plural, without duplicates.
func SurfaceForms(keyword string) []string {
	plural := inflection.Plural(keyword)

	possessivePlural := plural + "'s"
	if strings.HasSuffix(plural, "s") {
		possessivePlural = plural + "'"
	}

	forms := []string{keyword, plural, keyword + "'s", possessivePlural}
	out := forms[:0]
	seen := make(map[string]bool, len(forms))
	for _, f := range forms {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// buildInflections maps every surface form to its root. A root's own
// spelling always wins over another root's inflected form; remaining
// collisions go to the alphabetically first root.
func buildInflections(roots []string) (map[string]string, []Entry) {
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)

	forms := make(map[string]string, len(sorted)*4)
	for _, root := range sorted {
		forms[root] = root
	}

	entries := make([]Entry, 0, len(sorted))
	for _, root := range sorted {
		entry := Entry{Root: root}
		for _, form := range SurfaceForms(root) {
			if owner, ok := forms[form]; ok && owner != root {
				continue
			}
			forms[form] = root
			entry.Forms = append(entry.Forms, form)
		}
		entries = append(entries, entry)
	}
	return forms, entries
}
