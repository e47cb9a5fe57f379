package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikan/convo/pkg/agent"
	"github.com/mikan/convo/pkg/session"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively from the terminal",
	Long: `Start an interactive chat session. Replies stream to stdout as the
model produces them; tool activity is shown inline. Exit with "exit",
"quit" or Ctrl-D.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session to resume (default: a fresh one)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := chatSessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}
	fmt.Printf("session %s (model %s). Type 'exit' to quit.\n", sessionID, rt.cfg.Agent.Model)

	// Ctrl-C aborts the in-flight turn instead of killing the REPL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			rt.manager.Abort(sessionID)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			return nil
		}

		events, err := rt.manager.StartTurn(context.Background(), sessionID, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		printTurn(events)
	}
}

func printTurn(events <-chan agent.Event) {
	for ev := range events {
		switch ev.Type {
		case agent.EventContentDelta:
			fmt.Print(ev.Delta)
		case agent.EventToolCallStarted:
			fmt.Printf("\n[tool %s started]\n", ev.ToolCall.Name)
		case agent.EventToolCallResult:
			if ev.ToolResult.Success {
				fmt.Printf("[tool %s -> %s]\n", ev.ToolResult.Tool, ev.ToolResult.Output)
			} else {
				fmt.Printf("[tool %s failed: %s]\n", ev.ToolResult.Tool, ev.ToolResult.Error)
			}
		case agent.EventTurnComplete:
			fmt.Println()
		case agent.EventCancelled:
			fmt.Println("\n[cancelled]")
		case agent.EventError:
			fmt.Printf("\n[error %s: %s]\n", ev.ErrorKind, ev.ErrorMessage)
		}
	}
}
