// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler.
//
// Command: chat (default when no command is given)
//
// Examples:
//   omnitool                          Chat with the active provider
//   omnitool chat --local             Use Ollama for this session
//   omnitool chat -m gemini-2.5-pro   Use another model for this session
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Start a new conversation
//   /model [id]         Show or set the model of the active provider
//   /provider [name]    Show or switch the provider (cloud, local, toggle)
//   /models             List models of the active provider
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the current request
//   Ctrl+D              Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/model"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader provides line editing and persistent history on a terminal.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{state: state, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		state.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	input, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.state.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *linerReader) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.state.WriteHistory(f)
			f.Close()
		}
	}
	return r.state.Close()
}

// scanReader reads piped input without prompting.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanReader{sc: sc}
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

func (a *App) newLineReader() lineReader {
	if a.Interactive && a.In == os.Stdin {
		return newLinerReader()
	}
	return newScanReader(a.In)
}

// normalizeInput trims and NFC-normalizes terminal input, so composed and
// decomposed forms of the same text become the same turn.
func normalizeInput(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession holds the state of one interactive chat.
type chatSession struct {
	app  *App
	args Args
	conv *model.Conversation
}

// HandleChat runs the interactive chat REPL.
func (a *App) HandleChat(ctx context.Context, args Args) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.Discovery != nil {
		stop := a.Discovery.Start(ctx)
		defer stop()
	}

	reader := a.newLineReader()
	defer reader.Close()

	s := &chatSession{app: a, args: args, conv: model.NewGreetedConversation()}
	if !args.Quiet {
		s.printHeader()
	}
	for _, turn := range s.conv.Turns() {
		s.printTurn(turn)
	}

	for {
		line, err := reader.Prompt(a.Theme.Prompt.Render("omnitool> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or end of piped input
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.Out)
				return nil
			}
			return NewCommandError("chat", "read input", err)
		}

		input := normalizeInput(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if !s.handleSlashCommand(ctx, input) {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		s.processMessage(ctx, input)
	}
}

func (s *chatSession) printHeader() {
	a := s.app
	settings := a.sessionSettings(s.args)
	fmt.Fprintf(a.Out, "%s  %s %s\n",
		a.Theme.Title.Render("omnitool chat"),
		a.Theme.ProviderBadge(settings.ActiveProvider),
		a.Theme.Muted.Render(settings.ActiveModel()))
	fmt.Fprintln(a.Out, a.Theme.Muted.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(a.Out)
}

// processMessage sends one user turn and appends the answer, or a failed
// turn describing the error.
func (s *chatSession) processMessage(ctx context.Context, input string) {
	a := s.app
	settings := a.sessionSettings(s.args)
	history := s.conv.Turns()
	s.conv.Append(model.NewUserTurn(input))

	// Ctrl+C cancels the request, not the session
	turnCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	answer, err := a.Router.Chat(turnCtx, input, history, settings)
	cancel()

	var turn model.Turn
	if err != nil {
		a.Log.Debugf("CHAT_FAILED | provider=%s err=%v", settings.ActiveProvider, err)
		turn = model.NewFailedTurn(err)
	} else {
		turn = model.NewAssistantTurn(answer)
	}
	s.conv.Append(turn)
	s.printTurn(turn)
}

func (s *chatSession) printTurn(turn model.Turn) {
	a := s.app
	if turn.IsUser() {
		return
	}

	label := a.Theme.AssistantLabel.Render(turn.Speaker.DisplayName() + ":")
	if turn.Failed {
		fmt.Fprintf(a.Out, "%s %s\n\n", label, a.Theme.FailedTurn.Render(turn.Text))
		return
	}
	fmt.Fprintf(a.Out, "%s\n%s\n\n", label, a.markdown.Render(turn.Text))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const chatHelp = `Commands:
  /help, /h            Show this help
  /clear, /c           Start a new conversation
  /model [id]          Show or set the model of the active provider
  /provider [name]     Show or switch the provider (cloud, local, toggle)
  /models              List models of the active provider
  /quit, /q            Exit chat
`

// handleSlashCommand runs a chat command. It returns false to end the chat.
func (s *chatSession) handleSlashCommand(ctx context.Context, input string) bool {
	a := s.app
	fields := strings.Fields(input)
	cmd, rest := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return false

	case "/help", "/h", "/?":
		fmt.Fprint(a.Out, chatHelp)

	case "/clear", "/c":
		s.conv.Clear()
		s.conv.Append(model.NewAssistantTurn(model.Greeting))
		fmt.Fprintln(a.Out, a.Theme.Muted.Render("Conversation cleared."))
		if greeting, ok := s.conv.Last(); ok {
			s.printTurn(greeting)
		}

	case "/model":
		settings := a.sessionSettings(s.args)
		if len(rest) == 0 {
			fmt.Fprintf(a.Out, "%s %s\n", a.Theme.ProviderBadge(settings.ActiveProvider), settings.ActiveModel())
			return true
		}
		id := rest[0]
		s.args.Model = ""
		if !s.persist(func(cur *config.Settings) { *cur = cur.WithModel(settings.ActiveProvider, id) }) {
			return true
		}
		fmt.Fprintf(a.Out, "%s %s\n", a.Theme.Success.Render("Model set to"), id)

	case "/provider":
		if len(rest) == 0 {
			fmt.Fprintln(a.Out, a.Theme.ProviderBadge(a.sessionSettings(s.args).ActiveProvider))
			return true
		}
		p, err := resolveProvider(rest[0], a.sessionSettings(s.args).ActiveProvider)
		if err != nil {
			s.printError(err)
			return true
		}
		s.args.Local, s.args.Cloud, s.args.Model = false, false, ""
		if !s.persist(func(cur *config.Settings) { cur.ActiveProvider = p }) {
			return true
		}
		settings := a.Store.Current()
		fmt.Fprintf(a.Out, "%s %s (%s)\n", a.Theme.Success.Render("Provider set to"), a.Theme.ProviderBadge(p), settings.ActiveModel())

	case "/models":
		p := a.sessionSettings(s.args).ActiveProvider
		if err := a.listModels(ctx, p, s.args, false); err != nil {
			s.printError(err)
		}

	default:
		s.printError(fmt.Errorf("unknown command %s (try /help)", cmd))
	}
	return true
}

// persist applies fn to the stored settings and reports success.
func (s *chatSession) persist(fn func(*config.Settings)) bool {
	if err := s.app.update(fn); err != nil {
		s.printError(err)
		return false
	}
	return true
}

func (s *chatSession) printError(err error) {
	DisplayError(s.app.Err, s.app.Theme, err, false)
}
