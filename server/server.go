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

// Package server exposes an engine over HTTP: top-level calls, replays,
// live trace streams, recorded traces and the remote entry point used by
// peer engines.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/node"
	"trpc.group/trpc-go/trpc-callgraph-go/remote"
	"trpc.group/trpc-go/trpc-callgraph-go/replay"
)

// Routes.
const (
	RouteChat        = "/v1/chat"
	RouteBatch       = "/v1/batch"
	RouteReplay      = "/v1/replay"
	RouteTraceStream = "/v1/traces/{traceId}/stream"
	RouteTraceNodes  = "/v1/traces/{traceId}/nodes"
	RouteTraceTree   = "/v1/traces/{traceId}/tree"
	RouteTraceEvents = "/v1/traces/{traceId}/events"
	RouteRemoteCall  = remote.CallRoute
)

// Server serves one engine.
type Server struct {
	engine   *engine.Engine
	replayer *replay.Replayer
	router   *mux.Router
	opts     *options
}

// New creates a Server for e.
func New(e *engine.Engine, opts ...Option) *Server {
	o := newOptions(opts...)
	s := &Server{
		engine:   e,
		replayer: replay.New(e, o.replayOptions...),
		router:   mux.NewRouter(),
		opts:     o,
	}
	s.router.Use(cors.New(o.cors).Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc(RouteChat, s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc(RouteBatch, s.handleBatch).Methods(http.MethodPost)
	s.router.HandleFunc(RouteReplay, s.handleReplay).Methods(http.MethodPost)
	s.router.HandleFunc(RouteRemoteCall, s.handleRemoteCall).Methods(http.MethodPost)

	s.router.HandleFunc(RouteTraceStream, s.handleTraceStream).Methods(http.MethodGet)
	s.router.HandleFunc(RouteTraceNodes, s.handleTraceNodes).Methods(http.MethodGet)
	s.router.HandleFunc(RouteTraceTree, s.handleTraceTree).Methods(http.MethodGet)
	s.router.HandleFunc(RouteTraceEvents, s.handleTraceEvents).Methods(http.MethodGet)

	// CORS pre-flight.
	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	for _, route := range []string{RouteChat, RouteBatch, RouteReplay, RouteRemoteCall} {
		s.router.HandleFunc(route, preflight).Methods(http.MethodOptions)
	}
}

// writeJSON writes v with status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("server: encode response: %v", err)
	}
}

type errorBody struct {
	Error *call.Error `json:"error"`
}

// writeError maps err to a status code and writes it as a classified error.
func writeError(w http.ResponseWriter, err error) {
	e := call.Classify(err)
	writeJSON(w, statusOf(e), errorBody{Error: e})
}

func statusOf(e *call.Error) int {
	switch e.Type {
	case call.ErrorTypeValidation:
		return http.StatusBadRequest
	case call.ErrorTypeReplay:
		return http.StatusNotFound
	case call.ErrorTypeReconstruction:
		if errors.Is(e, node.ErrNoRoot) {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case call.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
