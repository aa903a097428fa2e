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
	a2a "trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"
)

// TaskManagerBuilder builds the task manager around the message processor.
type TaskManagerBuilder func(processor taskmanager.MessageProcessor) (taskmanager.TaskManager, error)

type options struct {
	host               string
	name               string
	description        string
	entry              string
	agentCard          *a2a.AgentCard
	taskManagerBuilder TaskManagerBuilder
	extraOptions       []a2a.Option
}

// Option configures the a2a server.
type Option func(*options)

// WithHost sets the host the agent card advertises. Required.
func WithHost(host string) Option {
	return func(opts *options) {
		opts.host = host
	}
}

// WithName sets the name of the agent card.
func WithName(name string) Option {
	return func(opts *options) {
		opts.name = name
	}
}

// WithDescription sets the description of the agent card.
func WithDescription(desc string) Option {
	return func(opts *options) {
		opts.description = desc
	}
}

// WithEntry names the callee that serves plain A2A messages, i.e. messages
// that do not carry the node of a remote caller. Such messages start a new
// trace. Defaults to the entry of the engine.
func WithEntry(name string) Option {
	return func(opts *options) {
		opts.entry = name
	}
}

// WithAgentCard replaces the generated agent card.
func WithAgentCard(agentCard a2a.AgentCard) Option {
	return func(opts *options) {
		opts.agentCard = &agentCard
	}
}

// WithTaskManagerBuilder replaces the in-memory task manager.
func WithTaskManagerBuilder(builder TaskManagerBuilder) Option {
	return func(opts *options) {
		opts.taskManagerBuilder = builder
	}
}

// WithExtraA2AOptions passes options to the underlying a2a server.
func WithExtraA2AOptions(opts ...a2a.Option) Option {
	return func(options *options) {
		options.extraOptions = append(options.extraOptions, opts...)
	}
}
