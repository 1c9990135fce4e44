/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/events"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// ChannelZipExportProgress is the outbound-only archive-export feed.
const ChannelZipExportProgress = "zip-export:progress"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The runner serves a local UI; the origin is not meaningful here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is one outbound event frame.
type wsEvent struct {
	Channel     string                 `json:"channel"`
	Source      string                 `json:"source"`
	ExecutionId int64                  `json:"executionId,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Time        time.Time              `json:"time"`
}

// PublishZipExportProgress pushes one archive-export progress frame to every
// connected event subscriber.
func (h *Handler) PublishZipExportProgress(payload map[string]interface{}) {
	h.hub.Publish(events.Event{Type: ChannelZipExportProgress, Payload: payload})
}

// Events upgrades the connection and streams engine, retry, rerun and export
// events until the client goes away.
func (h *Handler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.ErrorS(err, "failed to upgrade the event connection")
		return
	}
	defer conn.Close()

	out := make(chan wsEvent, 256)
	done := make(chan struct{})

	// Slow clients drop frames rather than blocking the publishers.
	forward := func(source string, b *events.Broadcaster) func() {
		id, ch := b.Subscribe()
		go func() {
			for ev := range ch {
				frame := wsEvent{
					Channel:     ev.Type,
					Source:      source,
					ExecutionId: ev.ExecutionId,
					Payload:     ev.Payload,
					Time:        ev.Time,
				}
				select {
				case out <- frame:
				default:
				}
			}
		}()
		return func() { b.Unsubscribe(id) }
	}

	defer forward("engine", h.engine.Events())()
	defer forward("retry", h.retry.Events())()
	defer forward("rerun", h.rerun.Events())()
	defer forward("export", h.hub)()

	// Reader only detects the close; inbound frames are ignored.
	go func() {
		defer close(done)
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if werr := conn.WriteJSON(frame); werr != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if werr := conn.WriteMessage(websocket.PingMessage, nil); werr != nil {
				return
			}
		case <-done:
			return
		}
	}
}
