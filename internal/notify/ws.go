package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSHandler upgrades the connection and pushes stream-added events as
// JSON text frames. A write error means the client went away; the
// subscription is torn down and nothing is retried.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer func() {
			_ = conn.Close()
		}()

		// Drain client frames so close frames are noticed; clients are
		// not expected to send anything meaningful.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				if err := wsutil.WriteServerText(conn, payload); err != nil {
					slog.Debug("ws client write failed", "error", err)
					return
				}
			}
		}
	}
}
