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

// Package a2a holds helpers shared by the A2A client and server.
package a2a

import (
	"net/url"
	"strings"
)

// MetadataKey is the message metadata key carrying the remote call of a node.
const MetadataKey = "callgraph_remote_call"

// NormalizeURL prepends "http://" to an address without a scheme.
//
// Examples:
//   - "localhost:8080" gives "http://localhost:8080"
//   - "grpc://service:9090" is returned as is
func NormalizeURL(urlOrHost string) string {
	if urlOrHost == "" {
		return ""
	}
	u, err := url.Parse(urlOrHost)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return urlOrHost
	}
	return "http://" + urlOrHost
}

// JoinURL appends a route to a base address.
func JoinURL(base, route string) string {
	return strings.TrimRight(NormalizeURL(base), "/") + "/" + strings.TrimLeft(route, "/")
}
