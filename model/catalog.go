package model

import "time"

// Catalog is a raw TLE catalog as downloaded from a source, with the time it
// was fetched. Source identifies where it came from (usually the URL).
type Catalog struct {
	Source    string
	Data      []byte
	FetchedAt time.Time
}

// Age returns how old the catalog is relative to now.
func (c Catalog) Age(now time.Time) time.Duration {
	return now.Sub(c.FetchedAt)
}
