// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing for omnitool.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdVision
	CmdModels
	CmdConfig
	CmdServe
	CmdStatus
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdVision:
		return "vision"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdServe:
		return "serve"
	case CmdStatus:
		return "status"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool

	// Session overrides, never persisted
	Model string
	Local bool
	Cloud bool

	// Command-specific
	Query      string
	File       string
	Prompt     string
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Port       int

	// Raw args (remaining after the command name)
	Raw []string
}

const usageText = `omnitool - chat with Gemini or a local Ollama model

Usage:
  omnitool                          Interactive chat (default)
  omnitool chat [-m model] [--local|--cloud]
                                    Interactive chat
  omnitool ask "question"           Ask a single question
  omnitool vision <image> [prompt]  Analyze an image file or data URL
  omnitool models [list|refresh|select [id]]
                                    List, rediscover or choose models
  omnitool config [subcommand]      Show or change settings
  omnitool serve [--port N]         Run the local proxy gateway
  omnitool status                   Show provider, model and reachability
  omnitool version                  Show version information
  omnitool help                     Show this help

Config Commands:
  omnitool config show              Show settings (credential masked)
  omnitool config get <key>         Print one setting
  omnitool config set <key> <val>   Change one setting
  omnitool config provider <cloud|local|toggle>
                                    Switch the active provider
  omnitool config set-key [key]     Store the Gemini API key (hidden prompt)
  omnitool config check-key [key]   Validate a Gemini API key
  omnitool config path              Print configuration file locations
  omnitool config init              Write a default config.toml

  Keys: active_provider, local_endpoint, local_model_id,
        cloud_credential, cloud_model_id

Chat Commands:
  /help                             Show chat commands
  /clear                            Start a new conversation
  /model [id]                       Show or set the model
  /provider [cloud|local|toggle]    Show or switch the provider
  /models                           List models of the active provider
  /quit                             Exit chat (also Ctrl+D)

Global Flags:
  -v, --verbose                     Verbose logging to stderr
  -q, --quiet                       Minimal output
      --json                        JSON output (config show, models list, status)

Environment:
  OMNITOOL_PROVIDER, OMNITOOL_OLLAMA_URL, OMNITOOL_OLLAMA_MODEL,
  OMNITOOL_GEMINI_MODEL, OMNITOOL_API_KEY (or API_KEY)
                                    Settings overrides for this process
  OMNITOOL_HOME                     Configuration directory (default ~/.omnitool)
  PORT, OLLAMA_HOST                 Gateway port and daemon address
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// VersionInfo describes the build.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns the build information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses the command line, without the program name.
func Parse(argv []string) (Command, Args, error) {
	remaining, args := parseGlobalFlags(argv)

	// No command means interactive chat
	if len(remaining) == 0 {
		return CmdChat, args, nil
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, args, parseChatArgs(&args, remaining)

	case "ask":
		return CmdAsk, args, parseAskArgs(&args, remaining)

	case "vision", "image":
		return CmdVision, args, parseVisionArgs(&args, remaining)

	case "models", "model":
		return CmdModels, args, parseModelsArgs(&args, remaining)

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args, nil

	case "serve", "gateway":
		return CmdServe, args, parseServeArgs(&args, remaining)

	case "status", "s":
		return CmdStatus, args, nil

	case "version", "--version":
		return CmdVersion, args, nil

	case "help", "-h", "--help":
		return CmdHelp, args, nil
	}
	return CmdHelp, args, &UsageError{Message: fmt.Sprintf("unknown command %q", cmd)}
}

func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for _, arg := range argv {
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// parseProviderOverride reads --local / --cloud and -m / --model.
func parseProviderOverride(args *Args, p *ArgParser) error {
	args.Local = p.BoolFlag("local")
	args.Cloud = p.BoolFlag("cloud")
	if args.Local && args.Cloud {
		return &UsageError{Message: "--local and --cloud are mutually exclusive"}
	}
	if m := p.FlagOrDefault("model", p.Flag("m")); m != "" {
		args.Model = m
	}
	return nil
}

var sessionBoolFlags = []string{"local", "cloud"}

func parseChatArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, sessionBoolFlags...)
	return parseProviderOverride(args, p)
}

func parseAskArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, sessionBoolFlags...)
	if err := parseProviderOverride(args, p); err != nil {
		return err
	}
	args.Query = JoinPositionalArgs(p, 0)
	return nil
}

func parseVisionArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, sessionBoolFlags...)
	if err := parseProviderOverride(args, p); err != nil {
		return err
	}
	args.File = p.Positional(0)
	if args.File == "" {
		return &UsageError{Message: "vision needs an image path or data URL", Usage: "omnitool vision <image> [prompt]"}
	}
	args.Prompt = JoinPositionalArgs(p, 1)
	return nil
}

func parseModelsArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, sessionBoolFlags...)
	if err := parseProviderOverride(args, p); err != nil {
		return err
	}
	args.Subcommand = p.Subcommand()
	args.ConfigVal = p.Positional(1)
	return nil
}

// parseConfigArgs keeps the value verbatim so values may start with "-".
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

func parseServeArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining)
	port := p.FlagOrDefault("port", p.Flag("p"))
	if port == "" {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return &UsageError{Message: fmt.Sprintf("invalid port %q", port), Usage: "omnitool serve [--port N]"}
	}
	args.Port = n
	return nil
}
