package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aretw0/switchboard"
)

// streamRun writes every event of run as a server-sent event, then a final
// "done" or "error" event carrying the RunResult.
// A client disconnect cancels the run.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, run *switchboard.Run) {
	defer run.Cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		run.Cancel()
		run.Wait()
		writeProblem(w, http.StatusInternalServerError, Problem{Error: "streaming not supported"})
		s.logger.Error("streamRun: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Run-ID", run.ID())
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "run_id", run.ID())
			run.Cancel()
			run.Wait()
			return
		case ev, ok := <-run.Events():
			if !ok {
				res, err := run.Wait()
				name := "done"
				if err != nil {
					name = "error"
				}
				writeEvent(w, name, newRunResult(res, err))
				flusher.Flush()
				return
			}
			writeEvent(w, string(ev.Type), ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
