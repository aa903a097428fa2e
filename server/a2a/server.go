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

// Package a2a exposes an engine as an A2A server. Messages sent by
// remote.A2AAgent carry the node of the caller and are served as part of
// the caller's trace; other messages start a trace of their own.
package a2a

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	a2a "trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"
	"trpc.group/trpc-go/trpc-callgraph-go/call"
	"trpc.group/trpc-go/trpc-callgraph-go/engine"
	ia2a "trpc.group/trpc-go/trpc-callgraph-go/internal/a2a"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
)

const defaultName = "callgraph"

// New creates an a2a server for e.
func New(e *engine.Engine, opts ...Option) (*a2a.A2AServer, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.host == "" {
		return nil, errors.New("host is required")
	}
	if options.name == "" {
		options.name = defaultName
	}

	processor := &messageProcessor{engine: e, entry: options.entry}
	var taskManager taskmanager.TaskManager
	var err error
	if options.taskManagerBuilder != nil {
		taskManager, err = options.taskManagerBuilder(processor)
	} else {
		taskManager, err = taskmanager.NewMemoryTaskManager(processor)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}
	a2aServer, err := a2a.NewA2AServer(buildAgentCard(e, options), taskManager, options.extraOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a server: %w", err)
	}
	return a2aServer, nil
}

func buildAgentCard(e *engine.Engine, options *options) a2a.AgentCard {
	if options.agentCard != nil {
		return *options.agentCard
	}
	streaming := false
	return a2a.AgentCard{
		Name:        options.name,
		Description: options.description,
		URL:         ia2a.NormalizeURL(options.host),
		Capabilities: a2a.AgentCapabilities{
			Streaming: &streaming,
		},
		Skills:             buildSkills(e),
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

// buildSkills advertises every registered callable as a skill tagged with
// its category.
func buildSkills(e *engine.Engine) []a2a.AgentSkill {
	names := e.Names()
	skills := make([]a2a.AgentSkill, 0, len(names))
	for _, name := range names {
		callable, ok := e.Lookup(name)
		if !ok {
			continue
		}
		info := callable.Info()
		desc := info.Description
		skills = append(skills, a2a.AgentSkill{
			Name:        info.Name,
			Description: &desc,
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
			Tags:        []string{string(info.Category)},
		})
	}
	return skills
}

// messageProcessor runs A2A messages on the engine.
type messageProcessor struct {
	engine *engine.Engine
	entry  string
}

// ProcessMessage implements taskmanager.MessageProcessor.
func (m *messageProcessor) ProcessMessage(
	ctx context.Context,
	message protocol.Message,
	_ taskmanager.ProcessOptions,
	_ taskmanager.TaskHandler,
) (*taskmanager.MessageProcessingResult, error) {
	resp, err := m.process(ctx, message)
	if err != nil {
		return nil, err
	}
	msg := ia2a.EncodeResponse(resp)
	return &taskmanager.MessageProcessingResult{Result: &msg}, nil
}

func (m *messageProcessor) process(ctx context.Context, message protocol.Message) (*call.Response, error) {
	rc, err := ia2a.DecodeCall(message)
	switch {
	case err == nil:
		log.Debugf("a2aserver: serving node %s of trace %s", rc.NodeID, rc.TraceID)
		return m.engine.ServeRemote(ctx, rc), nil
	case errors.Is(err, ia2a.ErrNoRemoteCall):
		return m.engine.Chat(ctx, engine.Payload{
			Callee:    m.entry,
			Arguments: call.NewArguments(ia2a.Text(message.Parts)),
		}), nil
	default:
		return nil, err
	}
}
