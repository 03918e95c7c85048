package search

import "strings"

// UnknownSource is used when a result carries no outlet name at all.
const UnknownSource = "Unknown"

// ExtractSource returns the first non-empty outlet field in priority order:
// source, domain, hostname, publication, publisher.
func ExtractSource(r RawResult) string {
	for _, v := range []string{r.Source, r.Domain, r.Hostname, r.Publication, r.Publisher} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownSource
}
