package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chatdigest/internal/chat"
)

var sendCmd = &cobra.Command{
	Use:   "send <channel-id> <message>",
	Short: "Post a message to a channel",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.workspace(ctx)
		if err != nil {
			return err
		}
		msg, err := a.client.SendMessage(ctx, ws, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Message sent (id %s)\n", msg.ID)
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <message-id> <message>",
	Short: "Reply in the thread of a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.workspace(ctx)
		if err != nil {
			return err
		}
		msg, err := a.client.SendReply(ctx, ws, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reply sent (id %s)\n", msg.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete one of your messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.workspace(ctx)
		if err != nil {
			return err
		}
		if err := a.client.DeleteMessage(ctx, ws, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Message %s deleted\n", args[0])
		return nil
	},
}

var dmCmd = &cobra.Command{
	Use:   "dm <recipients> <message>",
	Short: "Send a direct message to comma-separated usernames or ids",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.workspace(ctx)
		if err != nil {
			return err
		}
		members, err := a.client.WorkspaceMembers(ctx, ws)
		if err != nil {
			return err
		}
		ids, err := chat.ResolveUserIDs(members, strings.Split(args[0], ","))
		if err != nil {
			return err
		}
		ch, err := a.client.DirectMessageChannel(ctx, ws, ids)
		if err != nil {
			return err
		}
		msg, err := a.client.SendMessage(ctx, ws, ch.ID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Direct message sent to %s (channel %s, id %s)\n", args[0], ch.ID, msg.ID)
		return nil
	},
}
