// Package ruleset implements the layered URL/MIME heuristics that decide
// whether an observed resource is a playable media stream. Every function
// here is pure: classification is string matching over already-available
// data, and a rejection is a decision, never an error.
package ruleset

import (
	"net/url"
	"strings"

	"github.com/streamlens/streamlens/internal/types"
)

// DefaultMinSizeBytes is the floor below which accepted resources are
// discarded, except for segmented-manifest kinds whose fetches are
// legitimately tiny.
const DefaultMinSizeBytes = 5000

// Input is one observed resource to classify.
type Input struct {
	URL          string
	ContentType  string
	ResourceKind string
	SizeBytes    int64
}

// Result is the classification outcome. Stage names the pipeline stage
// that decided, which makes individual stages observable in tests.
type Result struct {
	Accepted bool
	Stage    string
	Kind     types.StreamKind
	Quality  string
}

type outcome int

const (
	pass outcome = iota
	accept
	reject
)

// Stage is one predicate in the classification funnel. Stages run in
// order; the first accept or reject wins, pass falls through.
type Stage struct {
	Name string
	Eval func(Input) outcome
}

// Classifier runs the staged funnel and the post-classification size
// floor. The zero value is not usable; construct with New.
type Classifier struct {
	stages   []Stage
	minBytes int64
}

// New returns a Classifier with the default stage order: exclusion,
// MIME allow-list, URL pattern allow-list, weak keyword fallback.
func New(minSizeBytes int64) *Classifier {
	if minSizeBytes <= 0 {
		minSizeBytes = DefaultMinSizeBytes
	}
	return &Classifier{
		stages: []Stage{
			{Name: "exclusion", Eval: evalExclusion},
			{Name: "mime", Eval: evalMIME},
			{Name: "url", Eval: evalURLPattern},
			// The weak fallback is the most false-positive-prone stage
			// and is kept separable so its keyword lists can be tuned
			// or the stage dropped without touching the funnel.
			{Name: "weak", Eval: evalWeakHeuristic},
		},
		minBytes: minSizeBytes,
	}
}

// Classify runs the funnel over one observation. Exclusion always wins
// over every inclusion rule. Accepted results below the size floor are
// discarded unless the resolved kind is a segmented-manifest kind.
func (c *Classifier) Classify(in Input) Result {
	for _, st := range c.stages {
		switch st.Eval(in) {
		case reject:
			return Result{Stage: st.Name}
		case accept:
			kind := ResolveKind(in.URL, in.ContentType)
			if in.SizeBytes > 0 && in.SizeBytes < c.minBytes && !kind.Segmented() {
				return Result{Stage: "size_floor"}
			}
			return Result{
				Accepted: true,
				Stage:    st.Name,
				Kind:     kind,
				Quality:  QualityLabel(in.URL),
			}
		}
	}
	return Result{Stage: "unmatched"}
}

var excludedHostFragments = []string{
	"doubleclick.",
	"googlesyndication.",
	"google-analytics.",
	"googletagmanager.",
	"googleadservices.",
	"adservice.",
	"adsystem.",
	"scorecardresearch.",
	"moatads.",
	"adnxs.",
}

var excludedPathFragments = []string{
	"/ads/",
	"/ad/",
	"/advert",
	"/track",
	"/pixel",
	"/analytics",
	"/telemetry",
	"/beacon",
	"/thumbnail",
	"/thumb/",
	"/preview/",
	"/poster/",
	"/sprite",
	"favicon",
}

var excludedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp",
	".css", ".js", ".mjs", ".map",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
}

// Excluded reports whether the URL matches a known non-media pattern.
// This check vetoes classification regardless of any other signal, so
// tracking pixels served as octet-stream never pass the funnel.
func Excluded(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	host, path := splitURL(lower)

	for _, frag := range excludedHostFragments {
		if strings.Contains(host, frag) {
			return true
		}
	}
	for _, frag := range excludedPathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// excludedMIMETokens veto by declared content type: a resource the
// server itself labels as an image, font, stylesheet or script is
// never a stream, no matter what its URL looks like.
var excludedMIMETokens = []string{
	"image/",
	"font/",
	"text/css",
	"application/javascript",
	"text/javascript",
}

func evalExclusion(in Input) outcome {
	if Excluded(in.URL) {
		return reject
	}
	ct := strings.ToLower(in.ContentType)
	for _, tok := range excludedMIMETokens {
		if strings.Contains(ct, tok) {
			return reject
		}
	}
	return pass
}

var mimeTokens = []string{
	"video/",
	"audio/",
	"mpegurl", // application/x-mpegURL, application/vnd.apple.mpegurl
	"dash+xml",
	"application/mp4",
	"application/octet-stream",
}

func evalMIME(in Input) outcome {
	ct := strings.ToLower(in.ContentType)
	if ct == "" {
		return pass
	}
	for _, tok := range mimeTokens {
		if strings.Contains(ct, tok) {
			return accept
		}
	}
	return pass
}

// streamExtensions maps known stream file extensions to their kind.
// Segment extensions (.ts, .m4s) resolve to hls: segments belong to the
// manifest family, not a standalone kind.
var streamExtensions = map[string]types.StreamKind{
	".mp4":  types.KindMP4,
	".m4v":  types.KindMP4,
	".mov":  types.KindMP4,
	".webm": types.KindWebM,
	".m3u8": types.KindHLS,
	".ts":   types.KindHLS,
	".m4s":  types.KindHLS,
	".mpd":  types.KindDASH,
	".flv":  types.KindFLV,
	".avi":  types.KindUnknown,
	".mkv":  types.KindUnknown,
	".3gp":  types.KindUnknown,
}

var manifestPathFragments = []string{
	"/manifest",
	"/playlist",
	"/chunklist",
	"/hls/",
	"/dash/",
}

var streamHostFragments = []string{
	"googlevideo.com",
	"vimeocdn.com",
	"akamaihd.net",
	"ttvnw.net",
	"nflxvideo.net",
}

func evalURLPattern(in Input) outcome {
	lower := strings.ToLower(in.URL)
	host, path := splitURL(lower)

	if extensionKind(path) != "" {
		return accept
	}
	for _, frag := range manifestPathFragments {
		if strings.Contains(path, frag) {
			return accept
		}
	}
	for _, frag := range streamHostFragments {
		if strings.Contains(host, frag) {
			return accept
		}
	}
	return pass
}

var weakNarrowKeywords = []string{"video", "media", "stream", "play", "watch"}

var weakBroadKeywords = []string{"video", "media", "stream", "play", "watch", "clip", "movie"}

// evalWeakHeuristic is the last-resort keyword layer. It only applies
// to media/xhr/other resource kinds and is expected to produce false
// positives; precision tuning here is a product decision.
func evalWeakHeuristic(in Input) outcome {
	switch strings.ToLower(in.ResourceKind) {
	case "media", "xhr", "other":
	default:
		return pass
	}

	lower := strings.ToLower(in.URL)
	if strings.Contains(strings.ToLower(in.ContentType), "octet-stream") {
		for _, kw := range weakNarrowKeywords {
			if strings.Contains(lower, kw) {
				return accept
			}
		}
	}
	for _, kw := range weakBroadKeywords {
		if strings.Contains(lower, kw) {
			return accept
		}
	}
	return pass
}

// ResolveKind determines the stream kind from URL and MIME type. The
// URL wins when both are present and disagree: CDNs frequently mislabel
// MIME headers, the file extension rarely lies.
func ResolveKind(rawURL, contentType string) types.StreamKind {
	lower := strings.ToLower(rawURL)
	_, path := splitURL(lower)

	if k := extensionKind(path); k != "" {
		return k
	}
	if strings.Contains(path, "/hls/") || strings.Contains(lower, "m3u8") {
		return types.KindHLS
	}
	if strings.Contains(path, "/dash/") || strings.Contains(lower, ".mpd") {
		return types.KindDASH
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "mpegurl"):
		return types.KindHLS
	case strings.Contains(ct, "dash+xml"):
		return types.KindDASH
	case strings.Contains(ct, "mp4"):
		return types.KindMP4
	case strings.Contains(ct, "webm"):
		return types.KindWebM
	case strings.Contains(ct, "flv"):
		return types.KindFLV
	}
	return types.KindUnknown
}

func extensionKind(path string) types.StreamKind {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		if k, ok := streamExtensions[path[idx:]]; ok {
			return k
		}
	}
	return ""
}

// splitURL returns the lowercased host and query-stripped path of a
// raw URL, falling back to substring matching over the whole string
// when parsing fails (telemetry URLs are not always well-formed).
func splitURL(lower string) (host, path string) {
	u, err := url.Parse(lower)
	if err != nil || u.Host == "" {
		if idx := strings.IndexByte(lower, '?'); idx >= 0 {
			return lower, lower[:idx]
		}
		return lower, lower
	}
	return u.Host, u.Path
}
