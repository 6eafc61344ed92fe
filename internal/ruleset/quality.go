package ruleset

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	heightTokenRe = regexp.MustCompile(`(?i)(\d{3,4})p`)
	resolutionRe  = regexp.MustCompile(`(\d{3,4})[xX](\d{3,4})`)
)

// itagLabels maps YouTube format identifiers to human quality labels.
// Only the commonly observed progressive and DASH video itags are
// covered; unlisted itags yield no label.
var itagLabels = map[string]string{
	"5":   "240p",
	"18":  "360p",
	"22":  "720p",
	"34":  "360p",
	"35":  "480p",
	"37":  "1080p",
	"38":  "2160p",
	"43":  "360p",
	"44":  "480p",
	"45":  "720p",
	"46":  "1080p",
	"133": "240p",
	"134": "360p",
	"135": "480p",
	"136": "720p",
	"137": "1080p",
	"160": "144p",
	"242": "240p",
	"243": "360p",
	"244": "480p",
	"247": "720p",
	"248": "1080p",
	"271": "1440p",
	"272": "2160p",
	"313": "2160p",
}

// textualQuality is checked in order so the more specific tokens win
// over the bare "hd"/"sd" markers.
var textualQuality = []struct {
	token string
	label string
}{
	{"2160p", "2160p"},
	{"1440p", "1440p"},
	{"4k", "4K"},
	{"uhd", "4K"},
	{"fullhd", "1080p"},
	{"fhd", "1080p"},
	{"hd", "HD"},
	{"sd", "SD"},
}

// QualityLabel infers a human-readable quality label from a stream URL.
// Rules run in order, first match wins; no match yields an empty label,
// never a placeholder.
func QualityLabel(rawURL string) string {
	if m := heightTokenRe.FindStringSubmatch(rawURL); m != nil {
		return m[1] + "p"
	}
	if m := resolutionRe.FindStringSubmatch(rawURL); m != nil {
		return m[2] + "p"
	}

	query := queryParams(rawURL)
	for _, key := range []string{"quality", "res"} {
		if v := query.Get(key); v != "" {
			return v
		}
	}

	lower := strings.ToLower(rawURL)
	for _, tq := range textualQuality {
		if strings.Contains(lower, tq.token) {
			return tq.label
		}
	}

	if itag := query.Get("itag"); itag != "" {
		if label, ok := itagLabels[itag]; ok {
			return label
		}
	}
	return ""
}

func queryParams(rawURL string) url.Values {
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}
