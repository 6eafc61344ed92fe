// Package api exposes the detection core over HTTP: session listing,
// per-session stream and candidate retrieval, on-demand DOM scans and
// best-effort stream-added push (SSE and websocket).
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/streamlens/streamlens/internal/aggregate"
	"github.com/streamlens/streamlens/internal/cdp"
	"github.com/streamlens/streamlens/internal/controller"
	"github.com/streamlens/streamlens/internal/notify"
	"github.com/streamlens/streamlens/internal/types"
)

// Service is the surface the API binds to.
type Service interface {
	ListSessions(ctx context.Context) ([]types.SessionInfo, error)
	GetStreams(ctx context.Context, sessionID string) ([]types.StreamCandidate, error)
	Scan(ctx context.Context, sessionID string) (controller.ScanResult, error)
	GetCandidates(ctx context.Context, sessionID string) ([]aggregate.Candidate, error)
}

type sessionIDInput struct {
	SessionID string `path:"session_id"`
}

type sessionsOutput struct {
	Body struct {
		Sessions []types.SessionInfo `json:"sessions"`
	}
}

type streamsOutput struct {
	Body struct {
		SessionID string                  `json:"session_id"`
		Streams   []types.StreamCandidate `json:"streams"`
	}
}

type scanOutput struct {
	Body controller.ScanResult
}

type candidatesOutput struct {
	Body struct {
		SessionID  string                `json:"session_id"`
		Candidates []aggregate.Candidate `json:"candidates"`
	}
}

type healthOutput struct {
	Body struct {
		Status       string `json:"status"`
		SessionCount int    `json:"session_count"`
		UptimeSec    int64  `json:"uptime_sec"`
	}
}

// NewServer builds the HTTP handler: huma-registered REST operations
// plus the raw SSE/websocket push endpoints on the same mux.
func NewServer(svc Service, broker *notify.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Streamlens Detection API", "1.0.0")
	api := humachi.New(router, cfg)

	started := time.Now()

	huma.Get(api, "/sessions", func(ctx context.Context, _ *struct{}) (*sessionsOutput, error) {
		sessions, err := svc.ListSessions(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &sessionsOutput{}
		out.Body.Sessions = sessions
		return out, nil
	})

	huma.Get(api, "/sessions/{session_id}/streams", func(ctx context.Context, in *sessionIDInput) (*streamsOutput, error) {
		streams, err := svc.GetStreams(ctx, in.SessionID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &streamsOutput{}
		out.Body.SessionID = in.SessionID
		out.Body.Streams = streams
		return out, nil
	})

	huma.Get(api, "/sessions/{session_id}/scan", func(ctx context.Context, in *sessionIDInput) (*scanOutput, error) {
		result, err := svc.Scan(ctx, in.SessionID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &scanOutput{Body: result}, nil
	})

	huma.Get(api, "/sessions/{session_id}/candidates", func(ctx context.Context, in *sessionIDInput) (*candidatesOutput, error) {
		candidates, err := svc.GetCandidates(ctx, in.SessionID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &candidatesOutput{}
		out.Body.SessionID = in.SessionID
		out.Body.Candidates = candidates
		return out, nil
	})

	huma.Get(api, "/healthz", func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		sessions, err := svc.ListSessions(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &healthOutput{}
		out.Body.Status = "ok"
		out.Body.SessionCount = len(sessions)
		out.Body.UptimeSec = int64(time.Since(started).Seconds())
		return out, nil
	})

	router.Get("/events", notify.SSEHandler(broker))
	router.Get("/ws/events", notify.WSHandler(broker))

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdp.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdp.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdp.CodeSessionNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdp.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdp.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
