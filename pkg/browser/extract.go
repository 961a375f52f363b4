package browser

import "igtracker/pkg/instagram"

// identifiersFromHrefs maps dialog links to usernames in document order,
// dropping non-profile links and repeats. At most limit identifiers are
// returned; limit <= 0 means no limit.
func identifiersFromHrefs(hrefs []string, limit int) []string {
	seen := make(map[string]bool, len(hrefs))
	var out []string
	for _, href := range hrefs {
		id, ok := instagram.IdentifierFromHref(href)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
