// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the local proxy gateway started by "omnitool serve".
//
// The gateway lets a browser client reach the local daemon and the cloud
// API from its own origin.
//
// # Endpoints
//
//   - POST /api/chat      - relayed to the daemon
//   - POST /api/generate  - relayed to the daemon
//   - GET  /api/tags      - relayed to the daemon
//   - POST /api/cloud     - {apiUrl, apiKey, body} relayed to an allowed https host
//   - GET  /              - client index.html, or health JSON for non-browsers
//   - GET  /health        - health JSON with traffic counters
//   - GET  /*             - static files with index.html fallback
//
// # Middleware
//
// Permissive CORS, panic recovery, request logging, per-IP rate limiting,
// security headers and a request body limit.
//
// # Usage
//
//	srv, err := server.New(appCfg.Gateway, server.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
package server
