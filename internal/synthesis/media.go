package synthesis

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".webm": {}, ".m3u8": {},
}

// selectMedia picks the first non-empty media URL among member posts in
// recency order. Images are mirrored immediately so the draft never
// depends on a scraped CDN link; videos keep the source URL and are
// re-hosted by a youtube-process job after approval.
func selectMedia(ctx context.Context, media ports.MediaStore, members []domain.Post, logger *slog.Logger) (string, domain.MediaType) {
	for _, post := range members {
		for _, raw := range post.MediaURLs {
			if strings.TrimSpace(raw) == "" {
				continue
			}

			if classifyMedia(raw) == domain.MediaVideo {
				return raw, domain.MediaVideo
			}

			if media == nil {
				return raw, domain.MediaImage
			}

			hosted, err := media.Mirror(ctx, raw, "images/"+post.ID)
			if err != nil {
				if logger != nil {
					logger.Warn("image mirror failed, keeping source url", "post", post.ID, "error", err)
				}
				return raw, domain.MediaImage
			}
			return hosted, domain.MediaImage
		}
	}

	return "", ""
}

func classifyMedia(raw string) domain.MediaType {
	parsed, err := url.Parse(raw)
	if err != nil {
		return domain.MediaImage
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, ok := videoExtensions[ext]; ok {
		return domain.MediaVideo
	}
	return domain.MediaImage
}
