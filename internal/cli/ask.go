// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single-turn question and image analysis handlers.
//
// Commands:
//   omnitool ask "question"             One chat turn, no history
//   echo "question" | omnitool ask      Question read from stdin
//   omnitool vision photo.jpg [prompt]  Analyze an image file
//   omnitool vision "data:image/png;base64,..." [prompt]

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/provider"
)

// MaxImageSize bounds image files read by the vision command.
const MaxImageSize = 20 * 1024 * 1024

// MaxStdinQuestion bounds a question read from stdin.
const MaxStdinQuestion = 1024 * 1024

// =============================================================================
// ASK
// =============================================================================

// HandleAsk sends a single question without conversation history.
func (a *App) HandleAsk(ctx context.Context, args Args) error {
	question := args.Query
	if question == "" || question == "-" {
		if a.Interactive {
			return ErrMissingArgument("question", `omnitool ask "question"`)
		}
		data, err := io.ReadAll(io.LimitReader(a.In, MaxStdinQuestion))
		if err != nil {
			return NewCommandError("ask", "read stdin", err)
		}
		question = string(data)
	}
	question = normalizeInput(question)
	if question == "" {
		return ErrMissingArgument("question", `omnitool ask "question"`)
	}

	settings := a.sessionSettings(args)
	answer, err := a.Router.Chat(ctx, question, nil, settings)
	if err != nil {
		return err
	}
	return a.printAnswer("ask", settings, answer, args)
}

func (a *App) printAnswer(command string, s config.Settings, answer string, args Args) error {
	if args.JSON {
		return writeJSON(a.Out, NewJSONResponse(command, AskData{
			Provider: s.ActiveProvider.String(),
			Model:    s.ActiveModel(),
			Answer:   answer,
		}))
	}
	if !args.Quiet {
		fmt.Fprintf(a.Err, "%s %s\n", a.Theme.ProviderBadge(s.ActiveProvider), a.Theme.Muted.Render(s.ActiveModel()))
	}
	fmt.Fprintln(a.Out, a.markdown.Render(answer))
	return nil
}

// =============================================================================
// VISION
// =============================================================================

// HandleVision analyzes an image with the active provider.
func (a *App) HandleVision(ctx context.Context, args Args) error {
	img, err := loadImage(args.File)
	if err != nil {
		return NewCommandError("vision", "load image", err)
	}

	settings := a.sessionSettings(args)
	answer, err := a.Router.AnalyzeImage(ctx, img, normalizeInput(args.Prompt), settings)
	if err != nil {
		return err
	}
	return a.printAnswer("vision", settings, answer, args)
}

// loadImage reads src as a data URL or an image file. The MIME type of a
// file is sniffed from its content.
func loadImage(src string) (provider.Image, error) {
	if strings.HasPrefix(src, "data:") {
		return provider.DecodeDataURL(src)
	}

	f, err := os.Open(src)
	if err != nil {
		return provider.Image{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return provider.Image{}, err
	}
	if len(data) > MaxImageSize {
		return provider.Image{}, fmt.Errorf("%s is larger than %d MB", src, MaxImageSize/(1024*1024))
	}
	if len(data) == 0 {
		return provider.Image{}, errors.New(src + " is empty")
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return provider.Image{}, fmt.Errorf("%s is not an image (detected %s)", src, mime)
	}
	return provider.Image{Data: data, MIMEType: mime}, nil
}
