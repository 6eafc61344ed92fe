package ruleset

import (
	"testing"

	"github.com/streamlens/streamlens/internal/types"
)

func TestClassifyFunnel(t *testing.T) {
	c := New(DefaultMinSizeBytes)

	cases := []struct {
		name     string
		in       Input
		accepted bool
		stage    string
		kind     types.StreamKind
	}{
		{
			name:     "plain_mp4_extension",
			in:       Input{URL: "https://cdn.example.com/media/movie.mp4", SizeBytes: 900000},
			accepted: true,
			stage:    "url",
			kind:     types.KindMP4,
		},
		{
			name:     "video_mime_accepted",
			in:       Input{URL: "https://cdn.example.com/asset", ContentType: "video/webm", SizeBytes: 500000},
			accepted: true,
			stage:    "mime",
			kind:     types.KindWebM,
		},
		{
			name:     "exclusion_beats_extension_match",
			in:       Input{URL: "https://ads.example.com/ad/tracking/video.mp4?x=1", SizeBytes: 900000},
			accepted: false,
			stage:    "exclusion",
		},
		{
			name:     "image_mime_rejected_regardless_of_url",
			in:       Input{URL: "https://cdn.example.com/clip.mp4", ContentType: "image/png", SizeBytes: 900000},
			accepted: false,
			stage:    "exclusion",
		},
		{
			name:     "tracking_pixel_with_octet_stream",
			in:       Input{URL: "https://metrics.example.com/pixel?id=9", ContentType: "application/octet-stream", ResourceKind: "XHR"},
			accepted: false,
			stage:    "exclusion",
		},
		{
			name:     "stylesheet_extension_rejected",
			in:       Input{URL: "https://cdn.example.com/player/styles.css", SizeBytes: 900000},
			accepted: false,
			stage:    "exclusion",
		},
		{
			name:     "hls_manifest_mime",
			in:       Input{URL: "https://stream.example.com/live/master", ContentType: "application/x-mpegURL", SizeBytes: 800},
			accepted: true,
			stage:    "mime",
			kind:     types.KindHLS,
		},
		{
			name:     "dash_manifest_mime",
			in:       Input{URL: "https://stream.example.com/live/index", ContentType: "application/dash+xml", SizeBytes: 1400},
			accepted: true,
			stage:    "mime",
			kind:     types.KindDASH,
		},
		{
			name:     "segment_extension_resolves_to_hls",
			in:       Input{URL: "https://stream.example.com/live/seg0001.ts", SizeBytes: 1200},
			accepted: true,
			stage:    "url",
			kind:     types.KindHLS,
		},
		{
			name:     "size_floor_rejects_small_mp4",
			in:       Input{URL: "https://cdn.example.com/tiny.mp4", SizeBytes: 1200},
			accepted: false,
			stage:    "size_floor",
		},
		{
			name:     "size_floor_exempts_hls",
			in:       Input{URL: "https://stream.example.com/chunklist.m3u8", SizeBytes: 1200},
			accepted: true,
			stage:    "url",
			kind:     types.KindHLS,
		},
		{
			name:     "weak_octet_stream_with_media_keyword",
			in:       Input{URL: "https://api.example.com/fetch/watchdata", ContentType: "application/octet-stream", ResourceKind: "XHR", SizeBytes: 900000},
			accepted: true,
			kind:     types.KindUnknown,
		},
		{
			name:     "weak_keyword_xhr",
			in:       Input{URL: "https://api.example.com/clip/9812", ResourceKind: "xhr", SizeBytes: 900000},
			accepted: true,
			stage:    "weak",
			kind:     types.KindUnknown,
		},
		{
			name:     "weak_skipped_for_script_kind",
			in:       Input{URL: "https://api.example.com/clip/9812", ResourceKind: "Script", SizeBytes: 900000},
			accepted: false,
			stage:    "unmatched",
		},
		{
			name:     "no_signal_rejected",
			in:       Input{URL: "https://www.example.com/api/settings", ContentType: "application/json", ResourceKind: "XHR"},
			accepted: false,
			stage:    "unmatched",
		},
		{
			name:     "cdn_hostname_pattern",
			in:       Input{URL: "https://r4---sn-ab5l6nsd.googlevideo.com/videoplayback?expire=1", SizeBytes: 2000000},
			accepted: true,
			stage:    "url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Classify(tc.in)
			if res.Accepted != tc.accepted {
				t.Fatalf("expected accepted=%v, got %v (stage=%s)", tc.accepted, res.Accepted, res.Stage)
			}
			if tc.stage != "" && res.Stage != tc.stage {
				t.Fatalf("expected stage %q, got %q", tc.stage, res.Stage)
			}
			if tc.kind != "" && res.Kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, res.Kind)
			}
		})
	}
}

func TestResolveKind(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		contentType string
		want        types.StreamKind
	}{
		{"extension_wins_over_mime", "https://cdn.example.com/v.webm", "video/mp4", types.KindWebM},
		{"m4s_is_hls_family", "https://cdn.example.com/frag12.m4s", "", types.KindHLS},
		{"mpd_is_dash", "https://cdn.example.com/stream.mpd?x=1", "", types.KindDASH},
		{"hls_path_convention", "https://cdn.example.com/hls/720/seg", "", types.KindHLS},
		{"mime_fallback_flv", "https://cdn.example.com/asset", "video/x-flv", types.KindFLV},
		{"mime_fallback_mp4", "https://cdn.example.com/asset", "video/mp4", types.KindMP4},
		{"nothing_known", "https://cdn.example.com/asset", "application/octet-stream", types.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveKind(tc.url, tc.contentType); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExcluded(t *testing.T) {
	t.Run("tracking_domain", func(t *testing.T) {
		if !Excluded("https://stats.g.doubleclick.net/collect") {
			t.Fatalf("expected doubleclick URL to be excluded")
		}
	})
	t.Run("thumbnail_path", func(t *testing.T) {
		if !Excluded("https://cdn.example.com/thumbnails/v1.mp4.jpg") {
			t.Fatalf("expected thumbnail URL to be excluded")
		}
	})
	t.Run("regular_stream_not_excluded", func(t *testing.T) {
		if Excluded("https://cdn.example.com/media/movie.mp4") {
			t.Fatalf("expected stream URL to pass exclusion")
		}
	})
}
