// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the contract shared by the cloud and local model
// clients and the error taxonomy both of them return.
//
// Every failure leaving a client is an *Error with one of five kinds:
//
//   - KindMissingCredential: cloud call without a credential, no I/O done
//   - KindConnectionFailed: the backend could not be reached
//   - KindUpstream: the backend answered with a non-success status
//   - KindVisionUnsupported: a local model rejected an image request
//   - KindUnknown: anything else, such as an undecodable response
//
// Check kinds with errors.Is against the sentinels:
//
//	if errors.Is(err, provider.ErrConnectionFailed) {
//	    // suggest checking the endpoint
//	}
package provider
