package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
)

func newQueueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List conversations waiting for an employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, done, err := a.console(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return writeConversations(cmd.OutOrStdout(), c.Queue(), a.jsonOut)
		},
	}
}

func newMineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List conversations assigned to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, done, err := a.console(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return writeConversations(cmd.OutOrStdout(), c.Mine(), a.jsonOut)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "search <text>",
		Short:   "Find conversations by customer name, phone or last message",
		Example: "  supportctl search 0905\n  supportctl search \"refund\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := a.console(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return writeConversations(cmd.OutOrStdout(), c.Search(strings.Join(args, " ")), a.jsonOut)
		},
	}
}

func newClaimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <conversation-id>",
		Short: "Take a conversation from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := a.console(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			err = c.Claim(cmd.Context(), args[0])
			if errors.Is(err, client.ErrAlreadyClaimed) {
				owner := ""
				if conv, ok := c.Conversation(args[0]); ok {
					owner = conv.Assignee()
				}
				return fmt.Errorf("conversation %s is already handled by %q", args[0], owner)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "claimed %s\n", args[0])
			return nil
		},
	}
}

func newReleaseCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "release <conversation-id>",
		Short: "Hand a conversation back to the assistant or the queue",
		Example: "  supportctl release 42\n" +
			"  supportctl release 42 --to WAITING_EMP",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := support.ParseStatus(to)
			if err != nil {
				return err
			}
			if target, err = support.ReleaseTarget(target); err != nil {
				return err
			}
			c, done, err := a.console(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			if target == support.StatusWaitingEmp {
				err = c.Requeue(cmd.Context(), args[0])
			} else {
				err = c.Release(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s to %s\n", args[0], target)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", string(support.StatusAI), "status after release: AI or WAITING_EMP")
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	var follow bool
	var older int
	cmd := &cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Show a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, done, err := a.console(ctx)
			if err != nil {
				return err
			}
			defer done()
			if err := c.Open(ctx, args[0]); err != nil {
				return err
			}
			for i := 0; i < older; i++ {
				if err := c.LoadMore(ctx); err != nil {
					return err
				}
			}

			out := newPrinter(cmd.OutOrStdout(), a.jsonOut)
			out.flush(c.Messages())
			if !follow {
				return nil
			}

			var mu sync.Mutex
			c.OnMessagesChange(func() {
				mu.Lock()
				defer mu.Unlock()
				out.flush(c.Messages())
			})
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new messages until interrupted")
	cmd.Flags().IntVar(&older, "pages", 0, "extra pages of history to load")
	return cmd
}

func newReplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <conversation-id> <text>",
		Short: "Answer a conversation you own",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, done, err := a.console(ctx)
			if err != nil {
				return err
			}
			defer done()
			if err := c.Open(ctx, args[0]); err != nil {
				return err
			}
			msg, err := c.Send(ctx, strings.Join(args[1:], " "))
			if errors.Is(err, client.ErrComposeDisabled) {
				return fmt.Errorf("conversation %s is not assigned to you; claim it first", args[0])
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent message %d\n", msg.ID)
			return nil
		},
	}
}
