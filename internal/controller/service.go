// Package controller is the service layer the API binds to: input
// validation, session lookup and the aggregation of both detection
// paths into one candidate list.
package controller

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/streamlens/streamlens/internal/aggregate"
	"github.com/streamlens/streamlens/internal/cdp"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/types"
)

// DOMScanner produces a fresh DOM candidate snapshot for a session.
// Implemented by the CDP client.
type DOMScanner interface {
	ScanSession(ctx context.Context, sessionID string) ([]types.VideoCandidate, error)
}

// ScanResult is one DOM scan pass over a session's document.
type ScanResult struct {
	ScanID     string                 `json:"scan_id"`
	SessionID  string                 `json:"session_id"`
	PageURL    string                 `json:"page_url,omitempty"`
	Candidates []types.VideoCandidate `json:"candidates"`
}

// Service wraps the detection core for API consumption.
type Service struct {
	sessions *session.Manager
	scanner  DOMScanner
}

func NewService(sessions *session.Manager, scanner DOMScanner) *Service {
	return &Service{sessions: sessions, scanner: scanner}
}

func (s *Service) requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return &cdp.CodedError{Code: cdp.CodeValidation, Message: "session_id is required"}
	}
	if !s.sessions.Has(sessionID) {
		return &cdp.CodedError{Code: cdp.CodeSessionNotFound, Message: "unknown session: " + sessionID}
	}
	return nil
}

// ListSessions returns all attached sessions.
func (s *Service) ListSessions(ctx context.Context) ([]types.SessionInfo, error) {
	return s.sessions.Sessions(), nil
}

// GetStreams returns the session's current network-detected stream
// list in insertion order. This is the authoritative state; a consumer
// that missed notifications recovers fully here.
func (s *Service) GetStreams(ctx context.Context, sessionID string) ([]types.StreamCandidate, error) {
	if err := s.requireSession(sessionID); err != nil {
		return nil, err
	}
	streams := s.sessions.Streams(sessionID)
	if streams == nil {
		streams = []types.StreamCandidate{}
	}
	return streams, nil
}

// Scan runs a DOM scan pass over the session's live document.
func (s *Service) Scan(ctx context.Context, sessionID string) (ScanResult, error) {
	if err := s.requireSession(sessionID); err != nil {
		return ScanResult{}, err
	}

	candidates, err := s.scanner.ScanSession(ctx, sessionID)
	if err != nil {
		return ScanResult{}, err
	}
	if candidates == nil {
		candidates = []types.VideoCandidate{}
	}

	pageURL, _ := s.sessions.URL(sessionID)
	return ScanResult{
		ScanID:     uuid.NewString(),
		SessionID:  sessionID,
		PageURL:    pageURL,
		Candidates: candidates,
	}, nil
}

// GetCandidates merges the DOM scan and the network stream list into
// one deduplicated display list. A failed DOM scan degrades to the
// network-only view rather than failing the request.
func (s *Service) GetCandidates(ctx context.Context, sessionID string) ([]aggregate.Candidate, error) {
	if err := s.requireSession(sessionID); err != nil {
		return nil, err
	}

	videos, err := s.scanner.ScanSession(ctx, sessionID)
	if err != nil {
		slog.Warn("DOM scan failed, serving network candidates only", "session_id", sessionID, "error", err)
		videos = nil
	}

	merged := aggregate.Merge(videos, s.sessions.Streams(sessionID))
	if merged == nil {
		merged = []aggregate.Candidate{}
	}
	return merged, nil
}
