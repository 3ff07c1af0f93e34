package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/cvsift/internal/bus"
)

// Subscriber is the event-bus surface the SSE endpoint needs.
type Subscriber interface {
	On(kind bus.Kind, fn func(bus.Event)) (unsubscribe func())
}

// handleEvents streams pipeline events as server-sent events. Keep-alives
// arrive as SSE comments so half-open connections surface as write errors.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Bus delivery is synchronous; buffer and drop rather than stall
		// the pipeline behind a slow client.
		events := make(chan bus.Event, 32)
		forward := func(e bus.Event) {
			select {
			case events <- e:
			default:
			}
		}
		for _, kind := range []bus.Kind{bus.KindAdded, bus.KindLabel, bus.KindKeepAlive} {
			unsubscribe := deps.Events.On(kind, forward)
			defer unsubscribe()
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case e := <-events:
				if err := writeSSE(w, e); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, e bus.Event) error {
	if e.Kind == bus.KindKeepAlive {
		_, err := fmt.Fprint(w, ": keep-alive\n\n")
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}
