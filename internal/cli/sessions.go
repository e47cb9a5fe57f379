package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	RunE:  runSessionsList,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete a session's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	infos, err := rt.manager.Sessions(context.Background())
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	for _, info := range infos {
		msgs, err := rt.manager.History(context.Background(), info.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %d messages\n", info.ID, len(msgs))
	}
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.manager.Clear(context.Background(), args[0]); err != nil {
		return err
	}

	fmt.Printf("cleared %s\n", args[0])
	return nil
}
