// Package domscan extracts structured video descriptors from a document
// snapshot: platform watch pages, <video> elements, player iframes and
// orphaned <source> declarations. Scanning is a pure read with no side
// effects; every pass produces a fresh candidate list.
package domscan

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/streamlens/streamlens/internal/ruleset"
	"github.com/streamlens/streamlens/internal/types"
)

// DefaultMinVideoArea is the declared pixel area below which a <video>
// element is treated as decorative rather than primary media.
const DefaultMinVideoArea = 10000

var embedIframeRes = []*regexp.Regexp{
	regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/`),
	regexp.MustCompile(`player\.vimeo\.com/video/`),
}

var iframeKeywords = []string{"video", "player", "embed", "stream"}

// Scanner scans parsed documents for video candidates. Scanner is
// stateless apart from its thresholds; Scan may be called repeatedly
// and concurrently.
type Scanner struct {
	minVideoArea int
}

func NewScanner(minVideoArea int) *Scanner {
	if minVideoArea <= 0 {
		minVideoArea = DefaultMinVideoArea
	}
	return &Scanner{minVideoArea: minVideoArea}
}

// ScanHTML parses raw HTML and scans it. Convenience wrapper for
// callers holding an outer-HTML snapshot rather than a parsed document.
func (s *Scanner) ScanHTML(html, pageURL string) ([]types.VideoCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return s.Scan(doc, pageURL), nil
}

// Scan runs all strategies in fixed order and deduplicates the
// concatenation. Order matters: platform detections are the highest
// confidence and must win deduplication ties.
func (s *Scanner) Scan(doc *goquery.Document, pageURL string) []types.VideoCandidate {
	var found []types.VideoCandidate
	found = append(found, scanPlatform(doc, pageURL)...)
	found = append(found, s.scanVideoElements(doc, pageURL)...)
	found = append(found, s.scanIframes(doc, pageURL)...)
	found = append(found, s.scanOrphanSources(doc, pageURL)...)
	return dedupe(found)
}

func (s *Scanner) scanVideoElements(doc *goquery.Document, pageURL string) []types.VideoCandidate {
	var out []types.VideoCandidate
	doc.Find("video").Each(func(_ int, el *goquery.Selection) {
		if s.tooSmall(el) {
			return
		}

		sourceURL := strings.TrimSpace(el.AttrOr("src", ""))
		var nested []types.StreamCandidate
		if sourceURL != "" && !strings.HasPrefix(sourceURL, "blob:") {
			nested = append(nested, sourceEntry(sourceURL, el.AttrOr("type", ""), pageURL))
		}

		el.Find("source").Each(func(_ int, src *goquery.Selection) {
			u := strings.TrimSpace(src.AttrOr("src", ""))
			if u == "" {
				return
			}
			if sourceURL == "" {
				sourceURL = u
			}
			nested = append(nested, sourceEntry(u, src.AttrOr("type", ""), pageURL))
		})

		cand := types.VideoCandidate{
			Platform:      types.PlatformHTML5,
			Title:         videoTitle(doc, el),
			PageURL:       pageURL,
			NestedStreams: nested,
		}

		// blob: URLs only resolve inside the owning document; the
		// descriptor stays but the URL cannot be handed out.
		if sourceURL != "" && !strings.HasPrefix(sourceURL, "blob:") {
			cand.SourceURL = resolveURL(pageURL, sourceURL)
		}
		if poster := strings.TrimSpace(el.AttrOr("poster", "")); poster != "" {
			cand.ThumbnailURL = resolveURL(pageURL, poster)
		}
		out = append(out, cand)
	})
	return out
}

func (s *Scanner) scanIframes(doc *goquery.Document, pageURL string) []types.VideoCandidate {
	var out []types.VideoCandidate
	doc.Find("iframe").Each(func(_ int, el *goquery.Selection) {
		src := strings.TrimSpace(el.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(el.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}

		cand := types.VideoCandidate{
			Platform: types.PlatformUnknown,
			Title:    strings.TrimSpace(el.AttrOr("title", "")),
			PageURL:  pageURL,
		}

		if id := YouTubeID(src); id != "" {
			cand.Platform = types.PlatformYouTube
			cand.ExternalID = id
			cand.ThumbnailURL = "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
		} else if m := vimeoURLRe.FindStringSubmatch(src); m != nil {
			cand.Platform = types.PlatformVimeo
			cand.ExternalID = m[1]
		} else if !matchesEmbed(src) && !containsIframeKeyword(src) {
			return
		}

		if cand.Title == "" {
			cand.Title = documentTitle(doc)
		}
		out = append(out, cand)
	})
	return out
}

// scanOrphanSources picks up <source> declarations that sit outside any
// <video> parent, usually markup left behind by lazy player setups.
func (s *Scanner) scanOrphanSources(doc *goquery.Document, pageURL string) []types.VideoCandidate {
	var out []types.VideoCandidate
	doc.Find("source").Each(func(_ int, el *goquery.Selection) {
		if el.ParentsFiltered("video, audio").Length() > 0 {
			return
		}
		src := strings.TrimSpace(el.AttrOr("src", ""))
		if src == "" {
			return
		}
		out = append(out, types.VideoCandidate{
			Platform:      types.PlatformHTML5,
			Title:         documentTitle(doc),
			PageURL:       pageURL,
			SourceURL:     resolveURL(pageURL, src),
			NestedStreams: []types.StreamCandidate{sourceEntry(src, el.AttrOr("type", ""), pageURL)},
		})
	})
	return out
}

// tooSmall reports whether the element declares dimensions below the
// minimum pixel area. Elements with no declared size are retained:
// unknown is not small, and a snapshot carries no rendered geometry.
func (s *Scanner) tooSmall(el *goquery.Selection) bool {
	w := declaredPx(el, "width")
	h := declaredPx(el, "height")
	if w <= 0 || h <= 0 {
		return false
	}
	return w*h < s.minVideoArea
}

var stylePxRe = regexp.MustCompile(`(width|height)\s*:\s*(\d+)px`)

func declaredPx(el *goquery.Selection, dim string) int {
	if v, ok := el.Attr(dim); ok {
		if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil {
			return n
		}
	}
	if style, ok := el.Attr("style"); ok {
		for _, m := range stylePxRe.FindAllStringSubmatch(style, -1) {
			if m[1] == dim {
				if n, err := strconv.Atoi(m[2]); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

// videoTitle walks the title priority chain: element title attribute,
// aria-label, the nearest heading inside an article/section/player
// container, then the document title.
func videoTitle(doc *goquery.Document, el *goquery.Selection) string {
	if t := strings.TrimSpace(el.AttrOr("title", "")); t != "" {
		return t
	}
	if t := strings.TrimSpace(el.AttrOr("aria-label", "")); t != "" {
		return t
	}
	container := el.Closest("article, section, [class*='player'], [class*='video']")
	if container.Length() > 0 {
		if t := strings.TrimSpace(container.Find("h1, h2, h3").First().Text()); t != "" {
			return t
		}
	}
	return documentTitle(doc)
}

func sourceEntry(src, mimeType, pageURL string) types.StreamCandidate {
	return types.StreamCandidate{
		URL:         resolveURL(pageURL, src),
		Kind:        ruleset.ResolveKind(src, mimeType),
		ContentType: mimeType,
	}
}

func matchesEmbed(src string) bool {
	for _, re := range embedIframeRes {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}

func containsIframeKeyword(src string) bool {
	lower := strings.ToLower(src)
	for _, kw := range iframeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// resolveURL makes src absolute against the hosting page. blob: and
// data: URLs pass through untouched.
func resolveURL(pageURL, src string) string {
	if strings.HasPrefix(src, "blob:") || strings.HasPrefix(src, "data:") {
		return src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

// dedupe keeps the first occurrence per candidate key, preserving scan
// order so higher-confidence detections win ties.
func dedupe(in []types.VideoCandidate) []types.VideoCandidate {
	seen := make(map[string]bool, len(in))
	out := make([]types.VideoCandidate, 0, len(in))
	for _, c := range in {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
