package types

import "time"

// StreamKind is the coarse media container/protocol classification.
type StreamKind string

const (
	KindMP4     StreamKind = "mp4"
	KindWebM    StreamKind = "webm"
	KindHLS     StreamKind = "hls"
	KindDASH    StreamKind = "dash"
	KindFLV     StreamKind = "flv"
	KindUnknown StreamKind = "unknown"
)

// Segmented reports whether the kind is a segmented-manifest family
// (many small distinct requests to the same base path are the normal
// access pattern, so near-duplicate collapsing and the size floor do
// not apply).
func (k StreamKind) Segmented() bool {
	return k == KindHLS || k == KindDASH
}

// StreamCandidate is a network-observed resource believed to be a media
// stream. URL is the identity within a session.
type StreamCandidate struct {
	URL          string     `json:"url"`
	Kind         StreamKind `json:"kind"`
	SizeBytes    int64      `json:"size_bytes,omitempty"`
	QualityLabel string     `json:"quality_label,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	ObservedAt   time.Time  `json:"observed_at"`
}

// ResponseObservation is one observed network response for a session,
// as correlated from CDP events. Missing fields stay zero; the
// classifier treats absent data as absent, never as an error.
type ResponseObservation struct {
	SessionID     string            `json:"session_id"`
	URL           string            `json:"url"`
	ResourceKind  string            `json:"resource_kind"`
	StatusCode    int               `json:"status_code"`
	MimeType      string            `json:"mime_type,omitempty"`
	ContentLength int64             `json:"content_length,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// SessionInfo is the public view of one attached browser tab.
type SessionInfo struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	StreamCount int    `json:"stream_count"`
}
