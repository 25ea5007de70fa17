package posts

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Stream pushes full feed snapshots to the viewer over SSE. Each event
// is the complete ordered set, so a viewer can re-render idempotently
// no matter how many times the same snapshot arrives. The subscription
// is torn down when the viewer disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Feed.Subscribe(r.Context())
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(map[string]interface{}{"posts": snap})
			if err != nil {
				log.Printf("encode snapshot: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
