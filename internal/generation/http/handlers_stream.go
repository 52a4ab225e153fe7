package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/casegen/casegen-backend/internal/api/http/respond"
	"github.com/casegen/casegen-backend/internal/generation/service"
)

// StreamWorkflowEvents streams workflow progress using Server-Sent Events (SSE).
// Events: initial, update, finished and deleted.
func (h *Handler) StreamWorkflowEvents(c *gin.Context) {
	key := c.Param("key")
	orch, err := h.workflows.Get(key)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	state := orch.State()
	writeEvent(c, flusher, "initial", gin.H{"workflow": state})
	if state.Finished != nil {
		writeEvent(c, flusher, "finished", gin.H{"result": state.Finished})
		return
	}

	ctx := c.Request.Context()

	// the Redis draft store publishes every save; other stores rely on polling
	var pushed <-chan struct{}
	if h.watcher != nil {
		ch, stop := h.watcher.Watch(ctx, key)
		defer stop()
		pushed = ch
	}

	keepAlive := time.NewTicker(h.keepAliveInterval)
	defer keepAlive.Stop()
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()

	lastVersion := state.Version
	check := func() bool {
		current, err := h.workflows.Get(key)
		if err != nil || current != orch {
			writeEvent(c, flusher, "deleted", gin.H{"key": key})
			return false
		}
		st := current.State()
		if st.Version == lastVersion {
			return true
		}
		lastVersion = st.Version
		if st.Finished != nil {
			writeEvent(c, flusher, "finished", gin.H{"result": st.Finished})
			return false
		}
		writeEvent(c, flusher, "update", gin.H{"workflow": st})
		return true
	}

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case _, ok := <-pushed:
			if !ok {
				// watcher gone; fall back to polling
				pushed = nil
				continue
			}
			if !check() {
				return
			}

		case <-poll.C:
			if !check() {
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, flusher http.Flusher, event string, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

var _ Workflows = (*service.Registry)(nil)
