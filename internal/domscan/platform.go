package domscan

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/streamlens/streamlens/internal/types"
)

// YouTube URL shapes the platform scan understands. Watch pages carry
// the id in the v parameter, everything else in the path.
var youtubeURLRes = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/live/([A-Za-z0-9_-]{6,})`),
}

var vimeoURLRe = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)

// youtubeTitleSelectors is tried in priority order before falling back
// to the document title. YouTube's markup churns; the selectors cover
// the shapes seen across desktop layouts.
var youtubeTitleSelectors = []string{
	"h1.ytd-watch-metadata yt-formatted-string",
	"h1.ytd-watch-metadata",
	"#title h1",
	"h1.title",
	"meta[name='title']",
}

// YouTubeID extracts a YouTube video id from any known URL shape,
// returning "" when the URL is not a recognisable YouTube page.
func YouTubeID(pageURL string) string {
	if !strings.Contains(pageURL, "youtube.com") && !strings.Contains(pageURL, "youtu.be") {
		return ""
	}
	for _, re := range youtubeURLRes {
		if m := re.FindStringSubmatch(pageURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// VimeoID extracts a numeric Vimeo video id from a page URL.
func VimeoID(pageURL string) string {
	if !strings.Contains(pageURL, "vimeo.com") {
		return ""
	}
	if m := vimeoURLRe.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	return ""
}

// scanPlatform detects the page itself being a known platform's watch
// page and produces a candidate from the page URL and document markup,
// independent of any network signal.
func scanPlatform(doc *goquery.Document, pageURL string) []types.VideoCandidate {
	if id := YouTubeID(pageURL); id != "" {
		return []types.VideoCandidate{{
			Platform:     types.PlatformYouTube,
			ExternalID:   id,
			Title:        youtubeTitle(doc),
			PageURL:      pageURL,
			ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg",
		}}
	}

	if id := VimeoID(pageURL); id != "" {
		title := firstText(doc, "h1")
		if title == "" {
			title = documentTitle(doc)
		}
		return []types.VideoCandidate{{
			Platform:   types.PlatformVimeo,
			ExternalID: id,
			Title:      title,
			PageURL:    pageURL,
		}}
	}
	return nil
}

func youtubeTitle(doc *goquery.Document) string {
	for _, sel := range youtubeTitleSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if content, ok := s.Attr("content"); ok {
			if t := strings.TrimSpace(content); t != "" {
				return t
			}
			continue
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			return t
		}
	}
	return documentTitle(doc)
}

func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// documentTitle strips the platform suffix YouTube appends to its
// <title> tags.
func documentTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimSuffix(title, " - YouTube")
	return title
}
