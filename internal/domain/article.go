package domain

import "time"

// ReviewState enumerates the approval lifecycle of a synthesized article.
type ReviewState string

const (
	ReviewDraft         ReviewState = "DRAFT"
	ReviewPendingReview ReviewState = "PENDING_REVIEW"
	ReviewApproved      ReviewState = "APPROVED"
	ReviewRejected      ReviewState = "REJECTED"
)

// Platform identifies an outbound publish target.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformX        Platform = "x"
)

// MediaType classifies the selected article media.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Publication records the per-platform publish outcome. Each platform's
// record is written independently and exactly once.
type Publication struct {
	Platform       Platform
	PlatformPostID string
	URL            string
	PublishedAt    time.Time
}

// SynthesizedArticle is the publishable output of a hot topic. At most one
// non-rejected article exists per topic.
type SynthesizedArticle struct {
	ID                 string
	WorkspaceID        string
	TopicID            string
	Body               string
	MediaURL           string
	MediaType          MediaType
	ArchiveURL         string
	Review             ReviewState
	RejectReason       string
	ScheduledPublishAt time.Time
	Publications       map[Platform]Publication
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the article still blocks new synthesis for its topic.
func (a SynthesizedArticle) Active() bool {
	return a.Review != ReviewRejected
}

// PublishedOn reports whether the platform already has a recorded publication.
func (a SynthesizedArticle) PublishedOn(platform Platform) bool {
	_, ok := a.Publications[platform]
	return ok
}
