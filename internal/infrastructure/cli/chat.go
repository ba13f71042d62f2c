package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doeshing/chatwork/internal/app"
	"github.com/doeshing/chatwork/internal/domain"
)

func newChatCommand(container *app.Container) *cobra.Command {
	var autoExecute bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, container, autoExecute)
		},
	}

	cmd.Flags().BoolVarP(&autoExecute, "auto-execute", "a", false, "Execute proposed actions without confirmation")
	return cmd
}

func runREPL(cmd *cobra.Command, container *app.Container, autoExecute bool) error {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	sessionKey := "cli_" + uuid.NewString()

	fmt.Fprintln(out, "chatwork interactive session. Type /help for commands, /exit to quit.")
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/help":
			printREPLHelp(out)
			continue
		case "/clear":
			container.RelayService.ClearSession(sessionKey)
			fmt.Fprintln(out, "session cleared")
			continue
		case "/auto":
			autoExecute = !autoExecute
			fmt.Fprintf(out, "auto-execute: %v\n", autoExecute)
			continue
		}

		result, err := container.RelayService.StreamChat(cmd.Context(), sessionKey, line, func(frag string) {
			fmt.Fprint(out, frag)
		})
		fmt.Fprintln(out)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			continue
		}
		if result.Action == nil {
			continue
		}
		if autoExecute || confirmAction(out, in, *result.Action) {
			report := container.RelayService.ExecuteAction(cmd.Context(), *result.Action)
			fmt.Fprintln(out, report.Render())
		} else {
			fmt.Fprintln(out, "skipped")
		}
	}
}

func confirmAction(out io.Writer, in *bufio.Scanner, req domain.ActionRequest) bool {
	summary, err := json.Marshal(req)
	if err != nil {
		return false
	}
	fmt.Fprintf(out, "proposed action: %s\nrun it? [y/N] ", summary)
	if !in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(in.Text()))
	return answer == "y" || answer == "yes"
}

func printREPLHelp(out io.Writer) {
	fmt.Fprintln(out, "/clear  reset the conversation")
	fmt.Fprintln(out, "/auto   toggle action auto-execution")
	fmt.Fprintln(out, "/exit   leave the session")
}
