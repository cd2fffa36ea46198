package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentwire-dev/agentwire"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┌─┐┌─┐┌┐┌┌┬┐╦ ╦┬┬─┐┌─┐
  ╠═╣│ ┬├┤ │││ │ ║║║│├┬┘├┤
  ╩ ╩└─┘└─┘┘└┘ ┴ ╚╩╝┴┴└─└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentwire",
		Short: "Client tooling for the AgentWire messaging protocol",
		Long: `AgentWire keeps a persistent binary-framed channel to a remote agent.

This CLI drives the client SDK from the terminal:

  • Send one-shot messages or calls to an agent
  • Listen on an agent channel and print inbound messages
  • Run a local echo agent for development and testing
  • Load-test an agent endpoint and report round-trip latency

Configuration comes from agentwire.json in the working directory and
AGENTWIRE_* environment variables; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		sendCmd(),
		listenCmd(),
		echoCmd(),
		benchCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the AgentWire ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}

// newLogger builds the CLI's slog logger. Lifecycle logs go to stderr
// so command output on stdout stays parseable.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadClient builds a client from agentwire.json, the environment and
// the common command flags, in that order of precedence (flags win).
func loadClient(configDir, serviceURL, project, agent string, verbose bool) (*agentwire.Client, error) {
	cfg, err := agentwire.LoadConfig(configDir)
	if err != nil {
		return nil, err
	}
	if serviceURL != "" {
		cfg.ServiceURL = serviceURL
	}
	if project != "" {
		cfg.ProjectID = project
	}
	if agent != "" {
		cfg.Agent = agent
	}
	return agentwire.NewClient(cfg, agentwire.WithLogger(newLogger(verbose)))
}
