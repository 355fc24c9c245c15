package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/estate-hub/estate-hub/internal/infrastructure/sse"
)

// streamEvents pushes the caller's notifications as server-sent events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	client := sse.NewClient(actorFrom(r))
	s.hub.Register(client)
	defer s.hub.Unregister(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case e, open := <-client.Messages:
			if !open {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.RoutingKey(), payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
