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
	"regexp"
)

// ToolFilter selects the server tools exposed as callees.
type ToolFilter interface {
	Filter(ctx context.Context, tools []ToolInfo) []ToolInfo
}

// ToolInfo is the metadata a filter sees.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolFilterFunc adapts a function to ToolFilter.
type ToolFilterFunc func(ctx context.Context, tools []ToolInfo) []ToolInfo

// Filter implements ToolFilter.
func (f ToolFilterFunc) Filter(ctx context.Context, tools []ToolInfo) []ToolInfo {
	return f(ctx, tools)
}

type nameFilter struct {
	names   map[string]bool
	exclude bool
}

func (f *nameFilter) Filter(_ context.Context, tools []ToolInfo) []ToolInfo {
	if len(f.names) == 0 {
		return tools
	}
	var out []ToolInfo
	for _, t := range tools {
		if f.names[t.Name] != f.exclude {
			out = append(out, t)
		}
	}
	return out
}

type patternFilter struct {
	patterns []*regexp.Regexp
	exclude  bool
}

func (f *patternFilter) Filter(_ context.Context, tools []ToolInfo) []ToolInfo {
	if len(f.patterns) == 0 {
		return tools
	}
	var out []ToolInfo
	for _, t := range tools {
		matched := false
		for _, p := range f.patterns {
			if p.MatchString(t.Name) {
				matched = true
				break
			}
		}
		if matched != f.exclude {
			out = append(out, t)
		}
	}
	return out
}

func newNameFilter(exclude bool, names []string) ToolFilter {
	f := &nameFilter{names: make(map[string]bool, len(names)), exclude: exclude}
	for _, n := range names {
		f.names[n] = true
	}
	return f
}

func newPatternFilter(exclude bool, patterns []string) ToolFilter {
	f := &patternFilter{exclude: exclude}
	for _, p := range patterns {
		f.patterns = append(f.patterns, regexp.MustCompile(p))
	}
	return f
}

// NewIncludeFilter keeps only the named tools.
func NewIncludeFilter(names ...string) ToolFilter {
	return newNameFilter(false, names)
}

// NewExcludeFilter drops the named tools.
func NewExcludeFilter(names ...string) ToolFilter {
	return newNameFilter(true, names)
}

// NewPatternIncludeFilter keeps tools whose name matches a pattern. Invalid
// patterns panic.
func NewPatternIncludeFilter(patterns ...string) ToolFilter {
	return newPatternFilter(false, patterns)
}

// NewPatternExcludeFilter drops tools whose name matches a pattern.
func NewPatternExcludeFilter(patterns ...string) ToolFilter {
	return newPatternFilter(true, patterns)
}

// NewCompositeFilter applies filters in order.
func NewCompositeFilter(filters ...ToolFilter) ToolFilter {
	return ToolFilterFunc(func(ctx context.Context, tools []ToolInfo) []ToolInfo {
		for _, f := range filters {
			tools = f.Filter(ctx, tools)
		}
		return tools
	})
}
