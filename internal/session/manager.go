// Package session owns per-tab media stream detection state: it applies
// the heuristic ruleset to observed network responses and maintains an
// ordered, deduplicated, capacity-bounded stream list per session.
package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/streamlens/streamlens/internal/ruleset"
	"github.com/streamlens/streamlens/internal/types"
)

// Notifier receives best-effort "stream added" notifications. Delivery
// failure is not an error; Streams remains the source of truth.
type Notifier interface {
	StreamAdded(sessionID string, stream types.StreamCandidate)
}

// Manager is the sole owner of the session-id → stream-list mapping.
// Observations for different sessions proceed independently; within a
// session they are applied strictly in arrival order.
type Manager struct {
	rules      *ruleset.Classifier
	maxStreams int
	notifier   Notifier

	mu       sync.RWMutex
	sessions map[string]*state

	now func() time.Time
}

// NewManager creates a Manager. notifier may be nil.
func NewManager(rules *ruleset.Classifier, maxStreams int, notifier Notifier) *Manager {
	if maxStreams <= 0 {
		maxStreams = DefaultMaxStreams
	}
	return &Manager{
		rules:      rules,
		maxStreams: maxStreams,
		notifier:   notifier,
		sessions:   make(map[string]*state),
		now:        time.Now,
	}
}

// Register creates (or re-creates) a session for a tab. A session id
// reused after Close starts over with empty state.
func (m *Manager) Register(sessionID, url string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	m.sessions[sessionID] = &state{url: url}
	m.mu.Unlock()
}

// Observe classifies one network response and inserts the resulting
// stream into its session's list. Malformed observations (no session
// id, unknown session, non-success status) are silently dropped:
// network telemetry is high-volume and noisy by nature.
func (m *Manager) Observe(obs types.ResponseObservation) {
	if obs.SessionID == "" || obs.URL == "" {
		return
	}
	if obs.StatusCode < 200 || obs.StatusCode >= 400 {
		return
	}

	m.mu.RLock()
	st, ok := m.sessions[obs.SessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	res := m.rules.Classify(ruleset.Input{
		URL:          obs.URL,
		ContentType:  obs.MimeType,
		ResourceKind: obs.ResourceKind,
		SizeBytes:    obs.ContentLength,
	})
	if !res.Accepted {
		return
	}

	sc, added := st.observe(obs, res, m.maxStreams, m.now())
	if !added {
		return
	}

	slog.Debug("stream detected",
		"session_id", obs.SessionID,
		"kind", sc.Kind,
		"quality", sc.QualityLabel,
		"stage", res.Stage,
		"url", truncateURL(sc.URL),
	)

	if m.notifier != nil {
		m.notifier.StreamAdded(obs.SessionID, sc)
	}
}

// NavigationStarted resets a session's stream list when its top-level
// document begins loading a new URL. Observations arriving after the
// reset belong entirely to the new document.
func (m *Manager) NavigationStarted(sessionID, newURL string) {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	st.reset(newURL)
	slog.Info("session reset on navigation", "session_id", sessionID, "url", truncateURL(newURL))
}

// SetURL records an in-document (SPA) navigation. The document did not
// reload, so accumulated streams stay valid and no reset happens.
func (m *Manager) SetURL(sessionID, url string) {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	st.mu.Lock()
	st.url = url
	st.mu.Unlock()
}

// CloseSession discards all state for a session. Terminal: further
// observations for the id are dropped until it is registered again.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	slog.Info("session closed", "session_id", sessionID)
}

// Streams returns a copy of the session's current stream list in
// insertion order. Unknown sessions yield nil.
func (m *Manager) Streams(sessionID string) []types.StreamCandidate {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return st.snapshot()
}

// Has reports whether a session is currently registered.
func (m *Manager) Has(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// Sessions lists all registered sessions sorted by id.
func (m *Manager) Sessions() []types.SessionInfo {
	m.mu.RLock()
	infos := make([]types.SessionInfo, 0, len(m.sessions))
	for id, st := range m.sessions {
		st.mu.Lock()
		infos = append(infos, types.SessionInfo{
			SessionID:   id,
			URL:         st.url,
			StreamCount: len(st.streams),
		})
		st.mu.Unlock()
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

// URL returns the session's current document URL.
func (m *Manager) URL(sessionID string) (string, bool) {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.url, true
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
