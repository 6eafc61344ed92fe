package capture

import (
	"sync"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/streamlens/streamlens/internal/types"
)

type recordingSink struct {
	mu  sync.Mutex
	obs []types.ResponseObservation
}

func (s *recordingSink) Observe(o types.ResponseObservation) {
	s.mu.Lock()
	s.obs = append(s.obs, o)
	s.mu.Unlock()
}

func (s *recordingSink) all() []types.ResponseObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ResponseObservation, len(s.obs))
	copy(out, s.obs)
	return out
}

func responseEvent(id, url, mime string, headers network.Headers) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Type:      network.ResourceTypeMedia,
		Response: &network.Response{
			URL:      url,
			Status:   200,
			MimeType: mime,
			Headers:  headers,
		},
	}
}

func TestObservationForwardedAfterLoadingFinished(t *testing.T) {
	sink := &recordingSink{}
	c := NewResponseCapture(sink)
	defer c.Close()

	c.OnResponseReceived("tab1", responseEvent("req1", "https://cdn.example.com/a.mp4", "video/mp4",
		network.Headers{"Content-Length": "123456"}))

	if got := len(sink.all()); got != 0 {
		t.Fatalf("expected no forwarding before loadingFinished, got %d", got)
	}

	c.OnLoadingFinished("tab1", &network.EventLoadingFinished{RequestID: "req1", EncodedDataLength: 999})

	obs := sink.all()
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	o := obs[0]
	if o.SessionID != "tab1" || o.URL != "https://cdn.example.com/a.mp4" {
		t.Fatalf("unexpected observation: %+v", o)
	}
	if o.ContentLength != 123456 {
		t.Fatalf("expected header content-length to win, got %d", o.ContentLength)
	}
	if o.MimeType != "video/mp4" {
		t.Fatalf("expected mime carried over, got %q", o.MimeType)
	}
}

func TestEncodedDataLengthFallback(t *testing.T) {
	sink := &recordingSink{}
	c := NewResponseCapture(sink)
	defer c.Close()

	// Chunked response: no content-length header at all.
	c.OnResponseReceived("tab1", responseEvent("req1", "https://cdn.example.com/a.mp4", "video/mp4", nil))
	c.OnLoadingFinished("tab1", &network.EventLoadingFinished{RequestID: "req1", EncodedDataLength: 54321})

	obs := sink.all()
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if obs[0].ContentLength != 54321 {
		t.Fatalf("expected encoded data length fallback, got %d", obs[0].ContentLength)
	}
}

func TestFailedLoadIsDropped(t *testing.T) {
	sink := &recordingSink{}
	c := NewResponseCapture(sink)
	defer c.Close()

	c.OnResponseReceived("tab1", responseEvent("req1", "https://cdn.example.com/a.mp4", "video/mp4", nil))
	c.OnLoadingFailed("tab1", &network.EventLoadingFailed{RequestID: "req1"})
	c.OnLoadingFinished("tab1", &network.EventLoadingFinished{RequestID: "req1"})

	if got := len(sink.all()); got != 0 {
		t.Fatalf("expected failed load dropped, got %d observations", got)
	}
}

func TestUnknownRequestIDIgnored(t *testing.T) {
	sink := &recordingSink{}
	c := NewResponseCapture(sink)
	defer c.Close()

	c.OnLoadingFinished("tab1", &network.EventLoadingFinished{RequestID: "never-seen"})
	if got := len(sink.all()); got != 0 {
		t.Fatalf("expected nothing forwarded, got %d", got)
	}
}
