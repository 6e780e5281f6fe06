package cache

import "time"

// TTLProfile assigns a lifetime per content stream. Fast-moving streams
// get short TTLs, reconstructed or rarely-changing ones get long TTLs.
type TTLProfile struct {
	LiveFeed         time.Duration `json:"live_feed"`
	BlogFeed         time.Duration `json:"blog_feed"`
	Comments         time.Duration `json:"comments"`
	Content          time.Duration `json:"content"`
	Account          time.Duration `json:"account"`
	NotificationFeed time.Duration `json:"notification_feed"`
}

// DefaultTTLProfile returns the stock lifetimes.
func DefaultTTLProfile() TTLProfile {
	return TTLProfile{
		LiveFeed:         3 * time.Minute,
		BlogFeed:         10 * time.Minute,
		Comments:         30 * time.Minute,
		Content:          5 * time.Minute,
		Account:          10 * time.Minute,
		NotificationFeed: 6 * time.Hour,
	}
}

// ForStream maps a stream name to its TTL, falling back to Content.
func (p TTLProfile) ForStream(stream string) time.Duration {
	switch stream {
	case "trending", "created", "hot":
		return p.LiveFeed
	case "blog", "feed":
		return p.BlogFeed
	case "comments", "replies":
		return p.Comments
	case "account", "profile":
		return p.Account
	case "notifications":
		return p.NotificationFeed
	default:
		return p.Content
	}
}
