// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model catalog command handler.
//
// Command: models [list|refresh|select [id]]
//
// Examples:
//   omnitool models                   List models of the active provider
//   omnitool models list --local      List Ollama models
//   omnitool models refresh           Rediscover the catalog
//   omnitool models select            Pick a model interactively
//   omnitool models select llama3     Select a model by id

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/discovery"
	"github.com/jeranaias/omnitool/internal/provider"
	"github.com/jeranaias/omnitool/internal/ui/picker"
)

// HandleModels dispatches the models subcommands.
func (a *App) HandleModels(ctx context.Context, args Args) error {
	if a.Discovery == nil {
		return NewCommandError("models", "", fmt.Errorf("model discovery is not available"))
	}
	p := a.targetProvider(args)

	switch strings.ToLower(args.Subcommand) {
	case "", "list", "ls":
		return a.listModels(ctx, p, args, args.JSON)
	case "refresh":
		a.Discovery.Refresh(ctx, p)
		return a.listModels(ctx, p, args, args.JSON)
	case "select", "use":
		return a.selectModel(ctx, p, args.ConfigVal)
	}
	return &UsageError{
		Message: fmt.Sprintf("unknown models subcommand %q", args.Subcommand),
		Usage:   "omnitool models [list|refresh|select [id]]",
	}
}

// catalog returns p's snapshot, discovering first when nothing was fetched
// in this process. Cloud discovery needs a credential.
func (a *App) catalog(ctx context.Context, p config.Provider) discovery.Snapshot {
	snap := a.Discovery.Snapshot(p)
	if snap.Fetched {
		return snap
	}
	if p == config.ProviderLocal || a.Store.Current().HasCredential() {
		return a.Discovery.Refresh(ctx, p)
	}
	return snap
}

func (a *App) listModels(ctx context.Context, p config.Provider, args Args, jsonMode bool) error {
	snap := a.catalog(ctx, p)
	current := a.Store.Current().ModelFor(p)

	if jsonMode {
		return writeJSON(a.Out, NewJSONResponse("models", ModelsData{
			Provider: p.String(),
			Current:  current,
			Status:   snap.Status,
			Models:   snap.Catalog,
		}))
	}

	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s  %s\n", a.Theme.ProviderBadge(p), a.Theme.RenderStatus(snap.Status))
	}
	if len(snap.Catalog) == 0 {
		fmt.Fprintln(a.Out, a.Theme.Muted.Render("No models available."))
		return nil
	}

	t := newTable("", "ID", "NAME", "SIZE", "DESCRIPTION")
	for _, e := range snap.Catalog {
		mark := ""
		if e.ID == current {
			mark = "*"
		}
		t.add(mark, e.ID, e.Label, e.SizeHint, e.Description)
	}
	t.render(a.Out, a.Theme)

	if !provider.ContainsModel(snap.Catalog, current) && !args.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n", a.Theme.Muted.Render("Selected model (not listed):"), current)
	}
	return nil
}

// selectModel stores id as p's model. Without id an interactive picker is
// shown. Cloud ids are never checked against the catalog.
func (a *App) selectModel(ctx context.Context, p config.Provider, id string) error {
	if id == "" {
		if !a.Interactive {
			return ErrMissingArgument("model id", "omnitool models select <id>")
		}
		snap := a.catalog(ctx, p)
		refresher := func(ctx context.Context) discovery.Snapshot {
			return a.Discovery.Refresh(ctx, p)
		}
		m := picker.New(a.Theme, snap, a.Store.Current().ModelFor(p),
			picker.WithRefresher(refresher, !snap.Fetched),
			picker.WithContext(ctx))
		res, err := picker.Run(ctx, m)
		if err != nil {
			return NewCommandError("models", "select", err)
		}
		if !res.Selected {
			fmt.Fprintln(a.Err, a.Theme.Muted.Render("Selection cancelled."))
			return nil
		}
		id = res.ModelID
	}

	if p == config.ProviderLocal {
		if snap := a.Discovery.Snapshot(p); snap.Fetched && !provider.ContainsModel(snap.Catalog, id) {
			fmt.Fprintf(a.Err, "%s %s is not in the discovered catalog\n", a.Theme.Warning.Render("[WARN]"), id)
		}
	}

	if err := a.update(func(s *config.Settings) { *s = s.WithModel(p, id) }); err != nil {
		return NewCommandError("models", "select", err)
	}
	fmt.Fprintf(a.Out, "%s %s model set to %s\n", a.Theme.Success.Render("[OK]"), p.Label(), id)
	return nil
}

// update mutates the stored settings. A persistence failure is reported as
// a warning; the change stays active for this process.
func (a *App) update(fn func(*config.Settings)) error {
	_, err := a.Store.Mutate(fn)
	if err != nil && config.IsPersistError(err) {
		fmt.Fprintf(a.Err, "%s %v\n", a.Theme.Warning.Render("[WARN]"), err)
		return nil
	}
	return err
}
