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

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	"trpc.group/trpc-go/trpc-callgraph-go/tool"
)

var _ engine.Callable = (*Tool)(nil)

// Tool is one MCP server tool registered as a callee of category tool.
type Tool struct {
	info        engine.Info
	remoteName  string
	inputSchema *tool.Schema
	session     *session
}

func newTool(t mcp.Tool, s *session, cfg *toolSetConfig) *Tool {
	return &Tool{
		info: engine.Info{
			Name:        cfg.prefix + t.Name,
			Description: t.Description,
			Category:    call.CategoryTool,
			Resource:    cfg.resource,
			Timeout:     cfg.timeout,
			Retries:     cfg.retries,
		},
		remoteName:  t.Name,
		inputSchema: convertSchema(t.InputSchema),
		session:     s,
	}
}

// Info implements engine.Callable.
func (t *Tool) Info() engine.Info {
	return t.info
}

// Invoke implements engine.Callable. The query becomes the MCP arguments:
// an object is passed as is, a JSON object string is decoded, and any other
// text is sent as {"query": text}. The text contents of the result, joined
// by newlines, are the output.
func (t *Tool) Invoke(ctx context.Context, c *engine.Context) (any, error) {
	args, err := toolArguments(c.Request().Arguments)
	if err != nil {
		return nil, call.WrapError(call.ErrorTypeValidation, fmt.Errorf("mcp tool %s: %w", t.info.Name, err))
	}
	result, err := t.session.callTool(ctx, t.remoteName, args)
	if err != nil {
		return nil, call.WrapError(call.ErrorTypeTransport, fmt.Errorf("mcp tool %s: %w", t.info.Name, err))
	}
	text := contentText(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, call.WrapError(call.ErrorTypeExecution, fmt.Errorf("mcp tool %s: %w", t.info.Name, errors.New(text)))
	}
	return text, nil
}

// Declaration describes the tool the way local tools do.
func (t *Tool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        t.info.Name,
		Description: t.info.Description,
		InputSchema: t.inputSchema,
	}
}

func toolArguments(args call.Arguments) (map[string]any, error) {
	switch q := args.Query.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return q, nil
	case string:
		trimmed := strings.TrimSpace(q)
		if strings.HasPrefix(trimmed, "{") {
			var m map[string]any
			if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			return m, nil
		}
		return map[string]any{"query": q}, nil
	default:
		b, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return map[string]any{"query": args.QueryText()}, nil
		}
		return m, nil
	}
}

func contentText(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// convertSchema maps an MCP input schema onto tool.Schema through its JSON
// form. Unreadable schemas become a bare object.
func convertSchema(in any) *tool.Schema {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return &tool.Schema{Type: "object"}
	}
	var schema tool.Schema
	if err := json.Unmarshal(b, &schema); err != nil || string(b) == "null" {
		return &tool.Schema{Type: "object"}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return &schema
}
