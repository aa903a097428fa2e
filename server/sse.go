//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// handleTraceStream relays the channel of a trace as server-sent events.
// The observer joins from the beginning of the trace and the stream ends
// after the terminal event. A client disconnecting counts as the observer
// leaving, which cancels the trace when it was the last one.
func (s *Server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["traceId"]
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	events, err := s.engine.Hub().Subscribe(r.Context(), traceID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var keepAlive <-chan time.Time
	if s.opts.keepAlive > 0 {
		ticker := time.NewTicker(s.opts.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Errorf("server: marshal %s event of trace %s: %v", ev.Kind, traceID, err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
			flusher.Flush()
		case <-keepAlive:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			log.Debugf("server: observer of trace %s disconnected", traceID)
			return
		}
	}
}
