/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/friendsincode/bragi_stream/internal/events"
	ws "nhooyr.io/websocket"
)

// wsEvent is one event frame pushed to admin clients.
type wsEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   events.Payload `json:"payload,omitempty"`
}

// streamedEvents lists the bus events forwarded over the admin WebSocket.
var streamedEvents = []events.EventType{
	events.EventScanStarted,
	events.EventScanProgress,
	events.EventScanCompleted,
	events.EventScanFailed,
	events.EventMediaUpdated,
	events.EventPlaylistUpdated,
	events.EventUserCreated,
	events.EventUserDeleted,
}

// handleEvents upgrades to a WebSocket and forwards bus events until the
// client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx := r.Context()
	a.logger.Debug().Msg("admin event stream connected")

	subs := make(map[events.EventType]events.Subscriber, len(streamedEvents))
	for _, eventType := range streamedEvents {
		subs[eventType] = a.bus.Subscribe(eventType)
	}
	defer func() {
		for eventType, sub := range subs {
			a.bus.Unsubscribe(eventType, sub)
		}
	}()

	// Fan the per-type subscriptions into one channel so a single writer
	// owns the connection.
	merged := make(chan wsEvent, 32)
	done := make(chan struct{})
	defer close(done)
	for eventType, sub := range subs {
		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-done:
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- wsEvent{Type: string(eventType), Timestamp: time.Now(), Payload: payload}:
					default:
					}
				}
			}
		}(eventType, sub)
	}

	// Drain client frames so pings are answered and closure is noticed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case event := <-merged:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, ws.MessageText, data); err != nil {
				a.logger.Debug().Err(err).Msg("admin event stream write failed, closing")
				return
			}
		}
	}
}
