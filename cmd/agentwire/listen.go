package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentwire-dev/agentwire/pkg/protocol"
)

func listenCmd() *cobra.Command {
	var (
		configDir  string
		serviceURL string
		project    string
		agent      string
		timeout    time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to an agent and print inbound messages",
		Long: `Listen connects to the configured agent and prints every inbound
message as a JSON line on stdout until interrupted. Dropped
connections reconnect automatically with exponential backoff.

Examples:
  agentwire listen
  agentwire listen -a support-bot --url wss://agents.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(configDir, serviceURL, project, agent, timeout, verbose)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "C", ".", "Directory containing agentwire.json")
	cmd.Flags().StringVar(&serviceURL, "url", "", "Service URL (overrides config)")
	cmd.Flags().StringVar(&project, "project", "", "Project ID (overrides config)")
	cmd.Flags().StringVarP(&agent, "agent", "a", "", "Agent lookup key (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time limit for the initial connect")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runListen(configDir, serviceURL, project, agent string, timeout time.Duration, verbose bool) error {
	client, err := loadClient(configDir, serviceURL, project, agent, verbose)
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	client.OnMessage(func(msg *protocol.Message) error {
		return out.Encode(struct {
			ID      uint32          `json:"id"`
			Type    uint8           `json:"type"`
			Payload json.RawMessage `json:"payload,omitempty"`
		}{msg.ID, uint8(msg.Type), msg.Payload})
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		errorMsg("Could not reach %s", client.Endpoint())
		info("Run 'agentwire echo' to start a local agent, or check AGENTWIRE_SERVICE_URL")
		return err
	}

	info("Listening on %s", client.Endpoint())
	info("Press Ctrl+C to stop")
	fmt.Println()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n\n  Shutting down...")
	client.Disconnect()
	success("Disconnected")
	return nil
}
