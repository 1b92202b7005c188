package trend

import (
	"math"
	"time"

	"TrendPress/internal/domain"
)

// ScoreConfig weights the hot-score policy function.
type ScoreConfig struct {
	Gravity      float64 // time decay exponent
	WeightLike   float64
	WeightReply  float64
	WeightRepost float64
	WeightView   float64
	ScaleFactor  float64
	AuthorWeight float64 // distinct-author momentum multiplier
}

// DefaultScoreConfig keeps scores roughly in a 0-100 "temperature" band
// for a handful of recent, well-engaged posts.
var DefaultScoreConfig = ScoreConfig{
	Gravity:      1.5,
	WeightLike:   1.0,
	WeightReply:  2.0,
	WeightRepost: 1.5,
	WeightView:   0.01,
	ScaleFactor:  100.0,
	AuthorWeight: 0.35,
}

// HotScore computes a topic's heat from its member posts: per-post
// weighted engagement, log-smoothed and divided by (age+2)^gravity so
// older members contribute less, summed, then amplified by distinct-author
// breadth. Deterministic given the same members and now.
func HotScore(posts []domain.Post, authorCount int, now time.Time) float64 {
	return HotScoreWith(DefaultScoreConfig, posts, authorCount, now)
}

// HotScoreWith is HotScore under an explicit policy configuration.
func HotScoreWith(cfg ScoreConfig, posts []domain.Post, authorCount int, now time.Time) float64 {
	var total float64
	for _, post := range posts {
		weighted := float64(post.Likes)*cfg.WeightLike +
			float64(post.Replies)*cfg.WeightReply +
			float64(post.Reposts)*cfg.WeightRepost +
			float64(post.Views)*cfg.WeightView
		if weighted < 0 {
			weighted = 0
		}

		hours := now.Sub(post.ObservedAt).Hours()
		if hours < 0 {
			hours = 0
		}

		decay := math.Pow(hours+2, cfg.Gravity)
		total += math.Log10(weighted+1) * cfg.ScaleFactor / decay
	}

	if authorCount < 1 {
		authorCount = 1
	}

	return total * (1 + cfg.AuthorWeight*math.Log10(float64(authorCount)))
}
