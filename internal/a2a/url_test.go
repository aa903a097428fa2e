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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"http://example.com", "http://example.com"},
		{"https://example.com/api/v1", "https://example.com/api/v1"},
		{"grpc://service:9090", "grpc://service:9090"},
		{"localhost:8080", "http://localhost:8080"},
		{"192.168.1.1:8080", "http://192.168.1.1:8080"},
		{"example.com", "http://example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeURL(tt.input), tt.input)
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://peer:80/v1/remote/call", JoinURL("peer:80/", "/v1/remote/call"))
	assert.Equal(t, "https://peer/api/v1/remote/call", JoinURL("https://peer/api", "v1/remote/call"))
}
