package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
)

func newWidgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Talk to support as a customer",
		Long: "Run the customer side of support. Without --role CUSTOMER the widget acts as a guest and\n" +
			"keeps its conversation in --token-file between runs.",
	}
	cmd.AddCommand(newWidgetChatCmd(a))
	cmd.AddCommand(newWidgetSendCmd(a))
	cmd.AddCommand(newWidgetHistoryCmd(a))
	cmd.AddCommand(newWidgetHumanCmd(a))
	return cmd
}

func newWidgetSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, done, err := a.widget(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			msg, err := w.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent message %d to %s\n", msg.ID, w.Identity().ConversationID)
			return nil
		},
	}
}

func newWidgetHistoryCmd(a *app) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, done, err := a.widget(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			for i := 0; i < pages; i++ {
				if err := w.LoadMore(cmd.Context()); err != nil {
					return err
				}
			}
			newPrinter(cmd.OutOrStdout(), a.jsonOut).flush(w.Messages())
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 0, "extra pages of history to load")
	return cmd
}

func newWidgetHumanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "human",
		Short: "Ask for an employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, done, err := a.widget(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			if err := w.RequestHuman(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "responder: %s\n", w.Responder())
			return nil
		},
	}
}

func newWidgetChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; /human asks for an employee, /more loads history, /quit exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, done, err := a.widget(ctx)
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			p := newPrinter(out, a.jsonOut)
			flush := func() {
				mu.Lock()
				defer mu.Unlock()
				p.flush(w.Messages())
			}
			w.OnChange(flush)
			w.OnTransition(func(t client.Transition) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "-- now answering: %s\n", client.ResponderFor(t.To.Status))
			})
			flush()

			lines := make(chan string)
			go readLines(cmd.InOrStdin(), lines)
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if quit := chatCommand(cmd, w, line); quit {
						return nil
					}
				}
			}
		},
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func chatCommand(cmd *cobra.Command, w *client.Widget, line string) bool {
	ctx := cmd.Context()
	var err error
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/human":
		err = w.RequestHuman(ctx)
	case "/more":
		err = w.LoadMore(ctx)
	default:
		_, err = w.Send(ctx, line)
		if errors.Is(err, client.ErrSendFailed) {
			err = fmt.Errorf("%w; draft kept: %q", err, w.Draft())
		}
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "!", err)
	}
	return false
}
