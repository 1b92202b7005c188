package domain

import "time"

// Topic is a workspace-scoped cluster of related posts. Membership only
// grows; topics are superseded by synthesis, never hard-deleted.
type Topic struct {
	ID          string
	WorkspaceID string
	Label       string
	PostIDs     []string // most recent first
	Keywords    []string // cluster signature, normalized tokens
	AuthorCount int
	PostCount   int
	HotScore    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AddPost prepends a member post, keeping recency order.
func (t *Topic) AddPost(postID string) {
	for _, id := range t.PostIDs {
		if id == postID {
			return
		}
	}
	t.PostIDs = append([]string{postID}, t.PostIDs...)
	t.PostCount = len(t.PostIDs)
}
