package domain

import "time"

const defaultMinLikes = 300

// PlatformCredentials holds the per-platform secrets a workspace publishes with.
type PlatformCredentials struct {
	Platform Platform
	Token    string
	ChatID   string // telegram target chat
	Handle   string // account handle where the platform needs one
}

// Workspace is a tenant: monitored accounts, thresholds, publish policy,
// prompts, and platform credentials. Read as immutable configuration for
// the duration of a job.
type Workspace struct {
	ID                string
	Name              string
	Accounts          []string
	Subject           string
	MinLikes          int
	HotScoreThreshold float64
	MaxPostAgeHours   int
	DailyPostLimit    int
	PublishTimes      []string // "HH:MM", ordered
	Timezone          string
	ReviewWindowHours int
	TranslationPrompt string
	RelevancePrompt   string
	AutoApproveDrafts bool
	AutoApprovePrompt string
	Platforms         map[Platform]PlatformCredentials
}

// EngagementFloor resolves the minimum-likes admission rule for the workspace.
func (w Workspace) EngagementFloor() int {
	if w.MinLikes <= 0 {
		return defaultMinLikes
	}
	return w.MinLikes
}

// MaxPostAge resolves the age bound as a duration; zero means unbounded.
func (w Workspace) MaxPostAge() time.Duration {
	return time.Duration(w.MaxPostAgeHours) * time.Hour
}

// ReviewWindow resolves the minimum approval-to-publish lead time.
func (w Workspace) ReviewWindow() time.Duration {
	return time.Duration(w.ReviewWindowHours) * time.Hour
}

// Location resolves the workspace timezone, defaulting to UTC.
func (w Workspace) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TargetPlatforms lists the platforms this workspace publishes to, in
// stable order.
func (w Workspace) TargetPlatforms() []Platform {
	ordered := []Platform{PlatformTelegram, PlatformX}
	var out []Platform
	for _, p := range ordered {
		if _, ok := w.Platforms[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
