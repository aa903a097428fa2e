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

package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
)

// ResponseKey is the message metadata key carrying the response of a node.
const ResponseKey = "callgraph_response"

// ErrNoRemoteCall is returned for messages that carry no remote call.
var ErrNoRemoteCall = errors.New("a2a: message carries no remote call")

// EncodeCall wraps a remote call into a user message. The query travels as
// text so plain A2A peers still understand the message.
func EncodeCall(rc engine.RemoteCall) protocol.Message {
	msg := protocol.NewMessage(protocol.MessageRoleUser,
		[]protocol.Part{protocol.NewTextPart(rc.Arguments.QueryText())})
	msg.Metadata = map[string]any{MetadataKey: rc}
	return msg
}

// DecodeCall extracts the remote call of a message.
func DecodeCall(msg protocol.Message) (engine.RemoteCall, error) {
	var rc engine.RemoteCall
	v, ok := msg.Metadata[MetadataKey]
	if !ok || v == nil {
		return rc, ErrNoRemoteCall
	}
	if err := remarshal(v, &rc); err != nil {
		return rc, fmt.Errorf("a2a: decode remote call: %w", err)
	}
	return rc, nil
}

// EncodeResponse wraps the response of a node into an agent message.
func EncodeResponse(resp *call.Response) protocol.Message {
	text := resp.Text()
	if !resp.OK() {
		text = resp.Err().Error()
	}
	msg := protocol.NewMessage(protocol.MessageRoleAgent, []protocol.Part{protocol.NewTextPart(text)})
	msg.Metadata = map[string]any{ResponseKey: resp}
	return msg
}

// DecodeResult maps the result of a SendMessage call back to a response.
// Messages produced by EncodeResponse keep their state and output; any
// other message or task completes with its text.
func DecodeResult(result any) (*call.Response, error) {
	switch v := result.(type) {
	case *protocol.Message:
		if raw, ok := v.Metadata[ResponseKey]; ok && raw != nil {
			var resp call.Response
			if err := remarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("a2a: decode response: %w", err)
			}
			return &resp, nil
		}
		return call.NewResponse(nil, Text(v.Parts)), nil
	case *protocol.Task:
		var parts []protocol.Part
		for _, artifact := range v.Artifacts {
			parts = append(parts, artifact.Parts...)
		}
		return call.NewResponse(nil, Text(parts)), nil
	case nil:
		return nil, errors.New("a2a: empty result")
	default:
		return nil, fmt.Errorf("a2a: unexpected result type %T", result)
	}
}

// Text concatenates the text parts of a message.
func Text(parts []protocol.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.GetKind() != protocol.KindText {
			continue
		}
		if p, ok := part.(*protocol.TextPart); ok {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// remarshal converts metadata values, which are plain maps once they went
// over the wire, into typed values.
func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
