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

package engine

// Override replaces the invocation of the node at one logical path with a
// recorded or supplied output.
type Override struct {
	// NodeID is the node of the reference trace the output stands for.
	NodeID string `json:"node_id"`
	// Output is returned to the caller as if the callee produced it.
	Output any `json:"output"`
	// Restart marks the override of the restart node itself, as opposed to
	// a reused earlier result.
	Restart bool `json:"restart,omitempty"`
}

// ReplayPlan drives a replayed trace. It travels with remote calls so that
// remote subtrees honor it too.
type ReplayPlan struct {
	ReferenceTraceID string              `json:"reference_trace_id"`
	Overrides        map[string]Override `json:"overrides"`
}

func (p *ReplayPlan) lookup(path string) (Override, bool) {
	if p == nil {
		return Override{}, false
	}
	ov, ok := p.Overrides[path]
	return ov, ok
}
