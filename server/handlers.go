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
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/replay"
)

// ChatRequest is the body of a top-level call.
type ChatRequest struct {
	engine.Payload
	// Stream starts the call in the background and returns its trace id
	// right away. Events are then read from the trace stream.
	Stream bool `json:"stream,omitempty"`
}

// BatchRequest is the body of a batch of top-level calls.
type BatchRequest struct {
	Payloads      []engine.Payload `json:"payloads"`
	ReturnTraceID bool             `json:"return_trace_id,omitempty"`
}

// ReplayRequest is the body of a replay.
type ReplayRequest struct {
	replay.Request
	Stream bool `json:"stream,omitempty"`
}

// CallResponse is the outcome of a top-level call.
type CallResponse struct {
	TraceID string         `json:"trace_id,omitempty"`
	State   call.State     `json:"state,omitempty"`
	Output  any            `json:"output,omitempty"`
	Error   *call.Error    `json:"error,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

func newCallResponse(traceID string, resp *call.Response) CallResponse {
	if traceID == "" && resp.Request != nil {
		traceID = resp.Request.TraceID
	}
	if id, ok := resp.Extra[call.ExtraTraceID].(string); ok && traceID == "" {
		traceID = id
	}
	return CallResponse{
		TraceID: traceID,
		State:   resp.State,
		Output:  resp.Output,
		Error:   resp.Error,
		Extra:   resp.Extra,
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return call.NewError(call.ErrorTypeValidation, "decode request body: %v", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}
	log.Debugf("server: chat %s on %q, stream=%v", req.TraceID, req.Callee, req.Stream)
	if req.Stream {
		run, err := s.engine.Start(r.Context(), req.Payload)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CallResponse{TraceID: run.TraceID, State: call.StateRunning})
		return
	}
	resp := s.engine.Chat(r.Context(), req.Payload)
	writeJSON(w, http.StatusOK, newCallResponse(req.TraceID, resp))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resps := s.engine.Batch(r.Context(), req.Payloads, req.ReturnTraceID)
	out := make([]CallResponse, len(resps))
	for i, resp := range resps {
		out[i] = newCallResponse("", resp)
		if !req.ReturnTraceID {
			out[i].TraceID = ""
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Stream {
		run, err := s.replayer.Start(r.Context(), req.Request)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CallResponse{TraceID: run.TraceID, State: call.StateRunning})
		return
	}
	resp, err := s.replayer.Replay(r.Context(), req.Request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCallResponse("", resp))
}

func (s *Server) handleRemoteCall(w http.ResponseWriter, r *http.Request) {
	var rc engine.RemoteCall
	if err := decode(r, &rc); err != nil {
		writeError(w, err)
		return
	}
	// The span of the remote node continues the span of the caller.
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	writeJSON(w, http.StatusOK, s.engine.ServeRemote(ctx, rc))
}

func (s *Server) handleTraceNodes(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["traceId"]
	recs, err := s.engine.Store().Nodes(r.Context(), traceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error: call.NewError(call.ErrorTypeValidation, "trace %s has no nodes", traceID),
		})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleTraceTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.engine.Tree(r.Context(), mux.Vars(r)["traceId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleTraceEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.engine.Store().Events(r.Context(), mux.Vars(r)["traceId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}
