// Package capture correlates CDP network events into response
// observations. A response is only forwarded once its transfer has
// finished, so the observation carries an authoritative byte size for
// the classifier's size floor.
package capture

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/streamlens/streamlens/internal/types"
)

// Sink receives completed response observations. Implemented by the
// session manager.
type Sink interface {
	Observe(obs types.ResponseObservation)
}

type pendingResponse struct {
	obs      types.ResponseObservation
	received time.Time
}

// ResponseCapture pairs Network.responseReceived with
// Network.loadingFinished per request id.
type ResponseCapture struct {
	sink Sink

	pending   map[string]*pendingResponse
	pendingMu sync.Mutex

	done chan struct{}
}

func NewResponseCapture(sink Sink) *ResponseCapture {
	c := &ResponseCapture{
		sink:    sink,
		pending: make(map[string]*pendingResponse),
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *ResponseCapture) Close() {
	close(c.done)
}

// OnResponseReceived records the response metadata and waits for the
// transfer to finish before forwarding.
func (c *ResponseCapture) OnResponseReceived(sessionID string, ev *network.EventResponseReceived) {
	headers := headerMapToStringMap(ev.Response.Headers)
	obs := types.ResponseObservation{
		SessionID:     sessionID,
		URL:           ev.Response.URL,
		ResourceKind:  string(ev.Type),
		StatusCode:    int(ev.Response.Status),
		MimeType:      ev.Response.MimeType,
		ContentLength: headerContentLength(headers),
		Headers:       headers,
	}
	if obs.MimeType == "" {
		obs.MimeType = headerValue(headers, "content-type")
	}

	c.pendingMu.Lock()
	c.pending[string(ev.RequestID)] = &pendingResponse{obs: obs, received: time.Now()}
	c.pendingMu.Unlock()
}

// OnLoadingFinished completes the observation. The encoded data length
// reported by the browser overrides a missing or zero content-length
// header; chunked responses carry no length header at all.
func (c *ResponseCapture) OnLoadingFinished(sessionID string, ev *network.EventLoadingFinished) {
	c.pendingMu.Lock()
	p, ok := c.pending[string(ev.RequestID)]
	if ok {
		delete(c.pending, string(ev.RequestID))
	}
	c.pendingMu.Unlock()

	if !ok || p.obs.SessionID != sessionID {
		return
	}

	if p.obs.ContentLength <= 0 && ev.EncodedDataLength > 0 {
		p.obs.ContentLength = int64(ev.EncodedDataLength)
	}
	c.sink.Observe(p.obs)
}

func (c *ResponseCapture) OnLoadingFailed(sessionID string, ev *network.EventLoadingFailed) {
	c.pendingMu.Lock()
	delete(c.pending, string(ev.RequestID))
	c.pendingMu.Unlock()
}

func (c *ResponseCapture) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupStale()
		case <-c.done:
			return
		}
	}
}

// cleanupStale drops responses whose loadingFinished never arrived,
// e.g. because the tab closed mid-transfer.
func (c *ResponseCapture) cleanupStale() {
	threshold := time.Now().Add(-5 * time.Minute)

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, p := range c.pending {
		if p.received.Before(threshold) {
			delete(c.pending, id)
		}
	}
}

func headerMapToStringMap(headers map[string]any) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[strings.ToLower(k)] = s
		}
	}
	return result
}

func headerValue(headers map[string]string, key string) string {
	return headers[key]
}

func headerContentLength(headers map[string]string) int64 {
	v := headerValue(headers, "content-length")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
