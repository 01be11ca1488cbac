// wsclient keeps a resilient WebSocket connection open and relays it to the
// terminal: inbound messages go to stdout, stdin lines are sent.
//
// Usage:
//
//	wsclient connect wss://stream.example.com/ws
//	wsclient connect --config configs/wsclient.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wsclient",
		Short: "Resilient WebSocket client",
		Long: `wsclient holds one logical WebSocket connection across network failures.

It reconnects with a fixed delay up to a bounded number of attempts,
sends a "ping" heartbeat while connected and hides "pong" replies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		connectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
