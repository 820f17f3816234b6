package model

import (
	"strings"
	"time"
)

// Tag is a denormalized popularity counter, not owned by any single bookmark.
//
// The slug is the identity; Name keeps the casing of the most recent write.
// Count may go negative transiently under concurrent detaches; readers
// filter out anything below 1.
type Tag struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TagSlug normalizes a display name into the tag identity: lowercased,
// whitespace runs collapsed to single hyphens, and everything that isn't
// a-z, 0-9, or a hyphen stripped.
//
//	TagSlug("Go  Tooling!") == "go-tooling"
func TagSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
