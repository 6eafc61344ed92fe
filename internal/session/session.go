package session

import (
	"strings"
	"sync"
	"time"

	"github.com/streamlens/streamlens/internal/ruleset"
	"github.com/streamlens/streamlens/internal/types"
)

// DefaultMaxStreams bounds the per-session stream list; the oldest
// entry is evicted first once the bound is exceeded.
const DefaultMaxStreams = 30

// state holds one session's accumulated streams. A session is the only
// writer of its own list; the embedded mutex serialises observation
// processing with reads and with Reset.
type state struct {
	mu      sync.Mutex
	url     string
	streams []types.StreamCandidate
}

// observe runs the insertion algorithm for one classified response and
// reports whether a new stream was appended.
func (s *state) observe(obs types.ResponseObservation, res ruleset.Result, maxStreams int, now time.Time) (types.StreamCandidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.streams {
		if existing.URL == obs.URL {
			return types.StreamCandidate{}, false
		}
	}

	// Pages re-request the same asset with only a cache-buster in the
	// query string differing; collapse those unless the kind's natural
	// access pattern is many distinct fetches of the same base.
	if !res.Kind.Segmented() {
		base := stripQuery(obs.URL)
		for _, existing := range s.streams {
			if existing.Kind == res.Kind && stripQuery(existing.URL) == base {
				return types.StreamCandidate{}, false
			}
		}
	}

	sc := types.StreamCandidate{
		URL:          obs.URL,
		Kind:         res.Kind,
		SizeBytes:    obs.ContentLength,
		QualityLabel: res.Quality,
		ContentType:  obs.MimeType,
		ObservedAt:   now,
	}

	s.streams = append(s.streams, sc)
	if len(s.streams) > maxStreams {
		s.streams = s.streams[len(s.streams)-maxStreams:]
	}
	return sc, true
}

// reset clears accumulated streams and records the new document URL.
// Runs synchronously: no observation for the old document interleaves
// with the new one.
func (s *state) reset(newURL string) {
	s.mu.Lock()
	s.streams = nil
	s.url = newURL
	s.mu.Unlock()
}

func (s *state) snapshot() []types.StreamCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.StreamCandidate, len(s.streams))
	copy(out, s.streams)
	return out
}

func stripQuery(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}
