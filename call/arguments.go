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

package call

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a raw conversation handed to a callee.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is a file or URL passed alongside the query.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Arguments is the per-call input of a callee. Query, Attachments and
// Messages are the recognized keys; anything else goes to Extra.
type Arguments struct {
	Query       any            `json:"query,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Messages    []Message      `json:"messages,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewArguments returns Arguments carrying query.
func NewArguments(query any) Arguments {
	return Arguments{Query: query}
}

// QueryText renders the query as text.
func (a Arguments) QueryText() string {
	switch q := a.Query.(type) {
	case nil:
		return ""
	case string:
		return q
	case []byte:
		return string(q)
	case fmt.Stringer:
		return q.String()
	default:
		b, err := json.Marshal(q)
		if err != nil {
			return fmt.Sprint(q)
		}
		return string(b)
	}
}

// Get returns an extension value.
func (a Arguments) Get(key string) (any, bool) {
	v, ok := a.Extra[key]
	return v, ok
}

// With returns a copy of a with key set in Extra.
func (a Arguments) With(key string, value any) Arguments {
	c := a.Clone()
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = value
	return c
}

// Clone returns a copy whose slices and map are not shared with a.
func (a Arguments) Clone() Arguments {
	c := a
	if a.Attachments != nil {
		c.Attachments = append([]Attachment(nil), a.Attachments...)
	}
	if a.Messages != nil {
		c.Messages = append([]Message(nil), a.Messages...)
	}
	if a.Extra != nil {
		c.Extra = maps.Clone(a.Extra)
	}
	return c
}
