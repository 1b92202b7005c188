package domain

import "time"

// Post is a single scraped social item, read-only to the pipeline except
// for the admission flag and topic link.
type Post struct {
	ID          string
	WorkspaceID string
	Account     string
	ThreadID    string
	Content     string
	MediaURLs   []string
	Likes       int
	Replies     int
	Reposts     int
	Views       int
	SourceURL   string
	ObservedAt  time.Time
	Accepted    bool
	TopicID     string
}

// Age reports how long ago the post was observed.
func (p Post) Age(now time.Time) time.Duration {
	return now.Sub(p.ObservedAt)
}
