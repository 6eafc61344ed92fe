package types

// Platform identifies the origin of a DOM-observed video.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformVimeo   Platform = "vimeo"
	PlatformHTML5   Platform = "html5"
	PlatformUnknown Platform = "unknown"
)

// VideoCandidate is a DOM-observed media element or embedded player
// descriptor. Each scan pass produces a fresh immutable snapshot;
// candidates are never mutated in place.
type VideoCandidate struct {
	Platform        Platform          `json:"platform"`
	ExternalID      string            `json:"external_id,omitempty"`
	Title           string            `json:"title,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	PageURL         string            `json:"page_url"`
	SourceURL       string            `json:"source_url,omitempty"`
	ThumbnailURL    string            `json:"thumbnail_url,omitempty"`
	NestedStreams   []StreamCandidate `json:"nested_streams,omitempty"`
}

// Key returns the deduplication identity for a candidate: the
// platform-native id when present, else the direct source URL, else
// the hosting page URL.
func (v VideoCandidate) Key() string {
	if v.ExternalID != "" {
		return string(v.Platform) + ":" + v.ExternalID
	}
	if v.SourceURL != "" {
		return v.SourceURL
	}
	return v.PageURL
}
