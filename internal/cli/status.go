// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command handler.
//
// Command: status
//
// Shows the active provider and model, whether the local daemon answers,
// and whether a cloud credential is available.

package cli

import (
	"context"
	"time"

	"github.com/jeranaias/omnitool/internal/cloud"
)

// StatusCheckTimeout bounds the local daemon check.
const StatusCheckTimeout = 3 * time.Second

// HandleStatus prints a summary of the current setup.
func (a *App) HandleStatus(ctx context.Context, args Args) error {
	s := a.sessionSettings(args)
	data := StatusData{
		Provider:      s.ActiveProvider.String(),
		Backend:       a.AppConfig.Storage.Backend,
		Model:         s.ActiveModel(),
		LocalEndpoint: s.LocalEndpoint,
		CredentialSet: s.HasCredential(),
		Version:       CurrentVersion().Version,
	}
	if data.CredentialSet {
		data.KeyID = cloud.KeyFingerprint(s.Credential())
	}

	if a.Local != nil {
		checkCtx, cancel := context.WithTimeout(ctx, StatusCheckTimeout)
		err := a.Local.CheckRunning(checkCtx, s.LocalEndpoint)
		cancel()
		data.LocalRunning = err == nil
		if err != nil {
			data.LocalError = err.Error()
		}
	}

	if args.JSON {
		return writeJSON(a.Out, NewJSONResponse("status", data))
	}

	local := a.Theme.Success.Render("running")
	if !data.LocalRunning {
		local = a.Theme.Error.Render("not reachable")
	}
	credential := a.Theme.Warning.Render("not set")
	if data.CredentialSet {
		credential = a.Theme.Success.Render("set") + " " + a.Theme.Muted.Render("("+data.KeyID+")")
	}

	keyValue(a.Out, a.Theme, [][2]string{
		{"Provider", a.Theme.ProviderBadge(s.ActiveProvider)},
		{"Model", data.Model},
		{"Ollama", data.LocalEndpoint + "  " + local},
		{"Gemini key", credential},
		{"Storage", data.Backend},
		{"Version", data.Version},
	})
	return nil
}
