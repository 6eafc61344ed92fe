package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/streamlens/streamlens/internal/ruleset"
	"github.com/streamlens/streamlens/internal/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.StreamCandidate
}

func (n *recordingNotifier) StreamAdded(sessionID string, stream types.StreamCandidate) {
	n.mu.Lock()
	n.events = append(n.events, stream)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newTestManager(maxStreams int, notifier Notifier) *Manager {
	return NewManager(ruleset.New(ruleset.DefaultMinSizeBytes), maxStreams, notifier)
}

func obs(sessionID, url string) types.ResponseObservation {
	return types.ResponseObservation{
		SessionID:     sessionID,
		URL:           url,
		ResourceKind:  "Media",
		StatusCode:    200,
		ContentLength: 1 << 20,
	}
}

func TestObserveInsertsStream(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestManager(0, notifier)
	m.Register("tab1", "https://example.com/page")

	m.Observe(obs("tab1", "https://cdn.example.com/media/movie.mp4"))

	streams := m.Streams("tab1")
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}
	if streams[0].Kind != types.KindMP4 {
		t.Fatalf("expected kind mp4, got %q", streams[0].Kind)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.count())
	}
}

func TestObserveDropsMalformedInput(t *testing.T) {
	m := newTestManager(0, nil)
	m.Register("tab1", "https://example.com")

	t.Run("missing_session_id", func(t *testing.T) {
		o := obs("", "https://cdn.example.com/movie.mp4")
		m.Observe(o)
		if got := len(m.Streams("tab1")); got != 0 {
			t.Fatalf("expected 0 streams, got %d", got)
		}
	})

	t.Run("unknown_session", func(t *testing.T) {
		m.Observe(obs("nope", "https://cdn.example.com/movie.mp4"))
		if m.Streams("nope") != nil {
			t.Fatalf("expected nil streams for unknown session")
		}
	})

	t.Run("error_status", func(t *testing.T) {
		o := obs("tab1", "https://cdn.example.com/movie.mp4")
		o.StatusCode = 404
		m.Observe(o)
		if got := len(m.Streams("tab1")); got != 0 {
			t.Fatalf("expected 0 streams, got %d", got)
		}
	})

	t.Run("redirect_status_accepted", func(t *testing.T) {
		o := obs("tab1", "https://cdn.example.com/movie.mp4")
		o.StatusCode = 302
		m.Observe(o)
		if got := len(m.Streams("tab1")); got != 1 {
			t.Fatalf("expected 1 stream, got %d", got)
		}
	})
}

func TestObserveDeduplicates(t *testing.T) {
	t.Run("exact_url_duplicate", func(t *testing.T) {
		m := newTestManager(0, nil)
		m.Register("tab1", "https://example.com")

		m.Observe(obs("tab1", "https://cdn.example.com/movie.mp4?t=1"))
		m.Observe(obs("tab1", "https://cdn.example.com/movie.mp4?t=1"))

		if got := len(m.Streams("tab1")); got != 1 {
			t.Fatalf("expected 1 stream, got %d", got)
		}
	})

	t.Run("near_duplicate_same_kind_collapses", func(t *testing.T) {
		m := newTestManager(0, nil)
		m.Register("tab1", "https://example.com")

		m.Observe(obs("tab1", "https://cdn.example.com/movie.mp4?t=1"))
		m.Observe(obs("tab1", "https://cdn.example.com/movie.mp4?t=2"))

		if got := len(m.Streams("tab1")); got != 1 {
			t.Fatalf("expected 1 stream, got %d", got)
		}
	})

	t.Run("hls_segments_same_base_retained", func(t *testing.T) {
		m := newTestManager(0, nil)
		m.Register("tab1", "https://example.com")

		m.Observe(obs("tab1", "https://stream.example.com/live/seg1.ts"))
		m.Observe(obs("tab1", "https://stream.example.com/live/seg2.ts"))
		m.Observe(obs("tab1", "https://stream.example.com/live/playlist.m3u8?v=1"))
		m.Observe(obs("tab1", "https://stream.example.com/live/playlist.m3u8?v=2"))

		if got := len(m.Streams("tab1")); got != 4 {
			t.Fatalf("expected 4 streams, got %d", got)
		}
	})

	t.Run("no_two_entries_share_url", func(t *testing.T) {
		m := newTestManager(0, nil)
		m.Register("tab1", "https://example.com")

		for i := 0; i < 3; i++ {
			m.Observe(obs("tab1", "https://stream.example.com/live/seg1.ts"))
		}

		seen := make(map[string]bool)
		for _, sc := range m.Streams("tab1") {
			if seen[sc.URL] {
				t.Fatalf("duplicate URL in stream list: %s", sc.URL)
			}
			seen[sc.URL] = true
		}
	})
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	m := newTestManager(5, nil)
	m.Register("tab1", "https://example.com")

	for i := 0; i < 6; i++ {
		m.Observe(obs("tab1", fmt.Sprintf("https://stream.example.com/live/seg%d.ts", i)))
	}

	streams := m.Streams("tab1")
	if len(streams) != 5 {
		t.Fatalf("expected capacity-bounded list of 5, got %d", len(streams))
	}
	if streams[0].URL != "https://stream.example.com/live/seg1.ts" {
		t.Fatalf("expected oldest entry evicted, head is %s", streams[0].URL)
	}
	if streams[4].URL != "https://stream.example.com/live/seg5.ts" {
		t.Fatalf("expected newest entry retained, tail is %s", streams[4].URL)
	}
}

func TestNavigationResetsBeforeNextObservation(t *testing.T) {
	m := newTestManager(0, nil)
	m.Register("tab1", "https://example.com/old")

	m.Observe(obs("tab1", "https://cdn.example.com/old/movie.mp4"))
	m.NavigationStarted("tab1", "https://example.com/new")
	m.Observe(obs("tab1", "https://cdn.example.com/new/intro.webm"))

	streams := m.Streams("tab1")
	if len(streams) != 1 {
		t.Fatalf("expected only post-navigation stream, got %d entries", len(streams))
	}
	if streams[0].URL != "https://cdn.example.com/new/intro.webm" {
		t.Fatalf("expected new document's stream, got %s", streams[0].URL)
	}
	if url, _ := m.URL("tab1"); url != "https://example.com/new" {
		t.Fatalf("expected session URL updated, got %s", url)
	}
}

func TestCloseSessionIsTerminal(t *testing.T) {
	m := newTestManager(0, nil)
	m.Register("tab1", "https://example.com")
	m.Observe(obs("tab1", "https://cdn.example.com/movie.mp4"))

	m.CloseSession("tab1")

	if m.Has("tab1") {
		t.Fatalf("expected session gone after close")
	}
	m.Observe(obs("tab1", "https://cdn.example.com/other.webm"))
	if m.Streams("tab1") != nil {
		t.Fatalf("expected observations dropped after close")
	}

	// Reuse of the id starts a brand-new session.
	m.Register("tab1", "https://example.com/again")
	if got := len(m.Streams("tab1")); got != 0 {
		t.Fatalf("expected fresh session to be empty, got %d streams", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := newTestManager(0, nil)
	m.Register("tab1", "https://example.com/a")
	m.Register("tab2", "https://example.com/b")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.Observe(obs("tab1", fmt.Sprintf("https://s1.example.com/hls/a%d.ts", i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			m.Observe(obs("tab2", fmt.Sprintf("https://s2.example.com/hls/b%d.ts", i)))
		}(i)
	}
	wg.Wait()

	if got := len(m.Streams("tab1")); got != 10 {
		t.Fatalf("expected 10 streams for tab1, got %d", got)
	}
	if got := len(m.Streams("tab2")); got != 10 {
		t.Fatalf("expected 10 streams for tab2, got %d", got)
	}

	infos := m.Sessions()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	if infos[0].SessionID != "tab1" || infos[1].SessionID != "tab2" {
		t.Fatalf("expected sorted session ids, got %+v", infos)
	}
}
