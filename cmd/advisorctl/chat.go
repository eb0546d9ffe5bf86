package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/conversation"
)

func newChatCmd(opts *options) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive plant care conversation",
		Long: `Chat walks through one of the guided topics. Pick options by number or type
an answer. /status prints the conversation state, /reset starts over and
/quit exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), a.conv, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local", "conversation user id")
	return cmd
}

func runChat(ctx context.Context, conv *conversation.Engine, userID string, in io.Reader, out io.Writer) error {
	resp, err := conv.Start(ctx, userID)
	if err != nil {
		return err
	}
	render(out, resp)

	scanner := bufio.NewScanner(in)
	for prompt(out); scanner.Scan(); prompt(out) {
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return nil
		case "/status":
			status, err := conv.Status(ctx, userID)
			if err != nil {
				return err
			}
			if err := printJSON(out, status); err != nil {
				return err
			}
			continue
		case "/reset":
			resp, err = conv.Reset(ctx, userID)
		default:
			resp, err = turn(ctx, conv, userID, line)
		}
		if err != nil {
			return err
		}
		render(out, resp)
	}
	return scanner.Err()
}

// turn routes a typed line by conversation stage, resolving option numbers
// and category names to the option they stand for.
func turn(ctx context.Context, conv *conversation.Engine, userID, line string) (*conversation.Response, error) {
	status, err := conv.Status(ctx, userID)
	if errors.HasCode(err, errors.ErrCodeNoActiveSession) {
		return conv.HandleFreeText(ctx, userID, line)
	}
	if err != nil {
		return nil, err
	}

	switch status.Stage {
	case conversation.StageAwaitingCategory:
		menu := conv.Catalog().Menu()
		if n, ok := pick(line, len(menu)); ok {
			return conv.SelectCategory(ctx, userID, string(menu[n].ID))
		}
		if id, ok := conv.Catalog().Match(line); ok {
			return conv.SelectCategory(ctx, userID, string(id))
		}
		return conv.HandleFreeText(ctx, userID, line)

	case conversation.StageAwaitingAnswer:
		if info, ok := conv.Catalog().Get(status.Category); ok {
			if q, ok := info.Question(status.QuestionNumber - 1); ok {
				if n, ok := pick(line, len(q.Options)); ok {
					line = q.Options[n]
				}
			}
		}
		return conv.Answer(ctx, userID, line)
	}

	return conv.HandleFreeText(ctx, userID, line)
}

func pick(line string, n int) (int, bool) {
	i, err := strconv.Atoi(line)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func prompt(out io.Writer) {
	fmt.Fprint(out, "> ")
}

func render(out io.Writer, resp *conversation.Response) {
	fmt.Fprintln(out, resp.Message)
	for i, opt := range resp.Options {
		fmt.Fprintf(out, "  %d. %s - %s\n", i+1, opt.Title, opt.Description)
	}
	if resp.Type != conversation.TypeDetailedAnswer {
		for i, choice := range resp.Choices {
			fmt.Fprintf(out, "  %d. %s\n", i+1, choice)
		}
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(out, "\nWhat next:")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
}
