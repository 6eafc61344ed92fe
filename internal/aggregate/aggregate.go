// Package aggregate merges DOM scan output and network classification
// output into one display list for UI consumers, deduplicating across
// the two sources.
package aggregate

import "github.com/streamlens/streamlens/internal/types"

// Candidate is one entry of the merged display list. Source records
// which subsystem produced it.
type Candidate struct {
	Source       string           `json:"source"` // "dom" or "network"
	Platform     types.Platform   `json:"platform,omitempty"`
	ExternalID   string           `json:"external_id,omitempty"`
	Title        string           `json:"title,omitempty"`
	PageURL      string           `json:"page_url,omitempty"`
	SourceURL    string           `json:"source_url,omitempty"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	Kind         types.StreamKind `json:"kind,omitempty"`
	QualityLabel string           `json:"quality_label,omitempty"`
	SizeBytes    int64            `json:"size_bytes,omitempty"`
}

// Merge combines both detection paths, DOM candidates first. A network
// stream already referenced by a DOM candidate (as its direct source or
// one of its nested markup streams) is dropped: the DOM entry carries
// strictly more context.
func Merge(videos []types.VideoCandidate, streams []types.StreamCandidate) []Candidate {
	covered := make(map[string]bool)
	out := make([]Candidate, 0, len(videos)+len(streams))

	for _, v := range videos {
		if v.SourceURL != "" {
			covered[v.SourceURL] = true
		}
		for _, ns := range v.NestedStreams {
			covered[ns.URL] = true
		}
		out = append(out, Candidate{
			Source:       "dom",
			Platform:     v.Platform,
			ExternalID:   v.ExternalID,
			Title:        v.Title,
			PageURL:      v.PageURL,
			SourceURL:    v.SourceURL,
			ThumbnailURL: v.ThumbnailURL,
		})
	}

	for _, s := range streams {
		if covered[s.URL] {
			continue
		}
		covered[s.URL] = true
		out = append(out, Candidate{
			Source:       "network",
			Platform:     types.PlatformUnknown,
			SourceURL:    s.URL,
			Kind:         s.Kind,
			QualityLabel: s.QualityLabel,
			SizeBytes:    s.SizeBytes,
		})
	}
	return out
}
