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

package remote

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	ia2a "trpc.group/trpc-go/trpc-callgraph-go/internal/a2a"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

// A2AAgent is a callable served by a peer over the A2A protocol. The remote
// call of the node travels in the metadata of the A2A message.
type A2AAgent struct {
	info    engine.Info
	url     string
	peer    string
	headers map[string]string
	client  *client.A2AClient
}

// NewA2A creates an agent named name whose node runs on the A2A server at
// url.
func NewA2A(name, url string, opts ...Option) (*A2AAgent, error) {
	if name == "" {
		return nil, fmt.Errorf("remote: agent name is empty")
	}
	if url == "" {
		return nil, fmt.Errorf("remote: agent %s has no peer url", name)
	}
	o := newOptions(opts...)
	url = ia2a.NormalizeURL(url)
	var clientOpts []client.Option
	if o.httpClient.Timeout > 0 {
		clientOpts = append(clientOpts, client.WithTimeout(o.httpClient.Timeout))
	}
	clientOpts = append(clientOpts, o.a2aOptions...)
	cl, err := client.NewA2AClient(url, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("remote: create a2a client for %s: %w", url, err)
	}
	a := &A2AAgent{
		info: engine.Info{
			Name:        name,
			Description: o.description,
			Category:    o.category,
			Resource:    o.resource,
			TrustMode:   o.trustMode,
			Timeout:     o.timeout,
			Retries:     o.retries,
		},
		url:     url,
		peer:    o.peerCallee,
		headers: o.headers,
		client:  cl,
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
func (a *A2AAgent) Info() engine.Info {
	return a.info
}

// Invoke sends the node to the peer and maps the reply back.
func (a *A2AAgent) Invoke(ctx context.Context, c *engine.Context) (any, error) {
	params := protocol.SendMessageParams{
		Message: ia2a.EncodeCall(engine.NewRemoteCall(c, a.peer)),
	}
	var reqOpts []client.RequestOption
	for k, v := range a.headers {
		reqOpts = append(reqOpts, client.WithRequestHeader(k, v))
	}
	result, err := a.client.SendMessage(ctx, params, reqOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, call.NewError(call.ErrorTypeTransport, "a2a request to %s: %v", a.url, err)
	}
	if result == nil {
		return nil, call.NewError(call.ErrorTypeTransport, "a2a request to %s: empty result", a.url)
	}
	resp, err := ia2a.DecodeResult(result.Result)
	if err != nil {
		return nil, call.WrapError(call.ErrorTypeTransport, err)
	}
	log.Debugf("remote: node %s served by a2a peer %s with state %s", c.Request().NodeID, a.url, resp.State)
	return Output(resp)
}
