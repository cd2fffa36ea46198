package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentwire-dev/agentwire"
	"github.com/agentwire-dev/agentwire/pkg/protocol"
)

func sendCmd() *cobra.Command {
	var (
		configDir  string
		serviceURL string
		project    string
		agent      string
		msgType    uint8
		call       string
		timeout    time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "send [payload]",
		Short: "Send a one-shot message to an agent",
		Long: `Send connects to the configured agent, transmits a single message and
exits. The payload is a JSON document given as an argument, or read
from a file with @path. It defaults to {}.

With --call the payload becomes the input of a call to the named
operation and the command waits for the agent's response, printing the
output JSON on stdout.

Examples:
  agentwire send '{"text":"hello"}'
  agentwire send --call summarize @notes.json
  agentwire send --type 104 '{"kind":"probe"}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := "{}"
			if len(args) == 1 {
				payload = args[0]
			}
			return runSend(configDir, serviceURL, project, agent, call, payload, msgType, timeout, verbose)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "C", ".", "Directory containing agentwire.json")
	cmd.Flags().StringVar(&serviceURL, "url", "", "Service URL (overrides config)")
	cmd.Flags().StringVar(&project, "project", "", "Project ID (overrides config)")
	cmd.Flags().StringVarP(&agent, "agent", "a", "", "Agent lookup key (overrides config)")
	cmd.Flags().Uint8VarP(&msgType, "type", "t", uint8(protocol.TypeUser), "Message type code")
	cmd.Flags().StringVar(&call, "call", "", "Send a call to this operation and wait for the response")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time limit for connect and response")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runSend(configDir, serviceURL, project, agent, call, payload string, msgType uint8, timeout time.Duration, verbose bool) error {
	raw, err := readPayload(payload)
	if err != nil {
		return err
	}

	client, err := loadClient(configDir, serviceURL, project, agent, verbose)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		errorMsg("Could not reach %s", client.Endpoint())
		info("Run 'agentwire echo' to start a local agent, or check AGENTWIRE_SERVICE_URL")
		return err
	}
	defer client.Disconnect()

	if call != "" {
		output, err := client.Call(ctx, call, raw)
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	msg, err := protocol.NewMessage(protocol.MessageType(msgType), raw)
	if err != nil {
		return err
	}
	status, err := client.Send(msg)
	if err != nil {
		return err
	}
	if status == agentwire.StatusQueued {
		// The connection dropped between connect and send; the queue
		// is discarded on disconnect, so this did not reach the agent.
		warn("connection lost before delivery, message not sent")
		return fmt.Errorf("message queued but not delivered")
	}
	success("message %s (type %d, %d bytes)", status, msgType, len(raw))
	return nil
}

// readPayload parses the payload argument. A leading @ reads the
// document from a file, curl style.
func readPayload(arg string) (json.RawMessage, error) {
	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}
