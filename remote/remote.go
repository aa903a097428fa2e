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

// Package remote provides callables whose node runs on a peer engine.
//
// Only the arguments and the trace context of the node cross the network.
// The peer runs the node with engine.ServeRemote, so the nodes it creates
// carry the same trace id and attach below the node of the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	ia2a "trpc.group/trpc-go/trpc-callgraph-go/internal/a2a"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// CallRoute is the route of the remote entry point of a peer.
const CallRoute = "/v1/remote/call"

// maxErrorBody bounds how much of a failed peer response ends up in an error.
const maxErrorBody = 512

// Agent is a callable served by a peer over HTTP.
type Agent struct {
	info    engine.Info
	url     string
	peer    string
	client  *http.Client
	headers map[string]string
}

// New creates an agent named name whose node runs on the peer at url. The
// peer callable has the same name unless WithPeerCallee says otherwise.
func New(name, url string, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("remote: agent name is empty")
	}
	if url == "" {
		return nil, fmt.Errorf("remote: agent %s has no peer url", name)
	}
	o := newOptions(opts...)
	a := &Agent{
		info: engine.Info{
			Name:        name,
			Description: o.description,
			Category:    o.category,
			Resource:    o.resource,
			TrustMode:   o.trustMode,
			Timeout:     o.timeout,
			Retries:     o.retries,
		},
		url:     ia2a.JoinURL(url, CallRoute),
		peer:    o.peerCallee,
		client:  o.httpClient,
		headers: o.headers,
	}
	if a.peer == "" {
		a.peer = name
	}
	if !a.info.Category.Valid() {
		return nil, fmt.Errorf("remote: agent %s has invalid category %q", name, a.info.Category)
	}
	return a, nil
}

// Info implements engine.Callable.
func (a *Agent) Info() engine.Info {
	return a.info
}

// Invoke posts the node to the peer and maps the peer response back.
func (a *Agent) Invoke(ctx context.Context, c *engine.Context) (any, error) {
	body, err := json.Marshal(engine.NewRemoteCall(c, a.peer))
	if err != nil {
		return nil, call.NewError(call.ErrorTypeValidation, "encode remote call: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, call.NewError(call.ErrorTypeValidation, "build remote request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	start := time.Now()
	httpResp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, call.WrapError(call.ErrorTypeTransport, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, call.NewError(call.ErrorTypeTransport, "peer %s answered %d: %s",
			a.url, httpResp.StatusCode, bytes.TrimSpace(msg))
	}
	var resp call.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, call.NewError(call.ErrorTypeTransport, "decode peer response: %v", err)
	}
	log.Debugf("remote: node %s served by %s in %s with state %s",
		c.Request().NodeID, a.url, time.Since(start), resp.State)
	return Output(&resp)
}

// Output turns a peer response into the result of the local node.
func Output(resp *call.Response) (any, error) {
	if resp.OK() {
		return resp.Output, nil
	}
	return nil, resp.Err()
}
