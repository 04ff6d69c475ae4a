package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chatdigest/internal/chat"
	"chatdigest/internal/digest"
	"chatdigest/internal/schedule"
	"chatdigest/internal/tui"
)

var (
	digestJSON   bool
	digestUnseen bool
	digestHours  int
	rawOutput    bool
	channelLimit int
	draftHours   int
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Fetch and print the prioritised digest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.fetch(ctx, fetchOptions{
			lookback:   time.Duration(digestHours) * time.Hour,
			unseenOnly: digestUnseen,
		})
		if err != nil {
			return err
		}
		d.Summary = a.summarizer().Summarize(ctx, d)

		if digestJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d.View())
		}
		return printMarkdown(cmd.OutOrStdout(), d.Summary)
	},
}

var channelCmd = &cobra.Command{
	Use:   "channel <channel-id>",
	Short: "Print the latest messages of one channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.fetcher(fetchOptions{}).ChannelTranscript(ctx, args[0], channelLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft replies to the messages that need you most",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.fetch(ctx, fetchOptions{lookback: time.Duration(draftHours) * time.Hour})
		if err != nil {
			return err
		}
		return printMarkdown(cmd.OutOrStdout(), a.summarizer().Drafts(ctx, d))
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the digest interactively",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var appModel tui.AppModel
	source := a.fetcher(fetchOptions{
		progress: func(p digest.Progress) { appModel.Progress(p) },
	})
	reply := func(ctx context.Context, messageID, text string) error {
		ws, err := a.workspace(ctx)
		if err != nil {
			return err
		}
		_, err = a.client.SendReply(ctx, ws, messageID, text)
		return err
	}
	appModel = tui.NewAppModel(ctx, source, reply)

	p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(ctx))
	appModel.SetProgram(p)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
		return m.Err
	}
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize chatdigest with your account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		_, err := chat.Login(ctx, chat.AuthConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenPath:    cfg.OAuth.TokenPath,
		}, os.Stdin, cmd.OutOrStdout())
		return err
	},
}

var (
	scheduleOnce bool
	scheduleCron string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Post the digest as a direct message on the configured cron schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		delivery := &schedule.Delivery{
			Source:     a.fetcher(fetchOptions{unseenOnly: true}),
			Summarizer: a.summarizer(),
			Identity:   a.identity,
			Messenger:  a.client,
			Recipients: cfg.Schedule.Recipients,
			Log:        logger,
		}
		if scheduleOnce {
			return delivery.Deliver(ctx)
		}

		expr := cfg.Schedule.Cron
		if scheduleCron != "" {
			expr = scheduleCron
		}
		runner, err := schedule.NewRunner(expr, delivery.Deliver, logger)
		if err != nil {
			return err
		}
		logger.Info("scheduler started", zap.String("cron", expr), zap.Time("next", runner.Next()))
		return runner.Run(ctx)
	},
}

func init() {
	digestCmd.Flags().BoolVar(&digestJSON, "json", false, "Print the digest as JSON")
	digestCmd.Flags().BoolVar(&digestUnseen, "unseen", false, "Only include messages newer than the previous run")
	digestCmd.Flags().IntVar(&digestHours, "hours", 0, "Look back this many hours (default from config)")
	digestCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print markdown without rendering")
	draftCmd.Flags().IntVar(&draftHours, "hours", 0, "Look back this many hours (default from config)")
	draftCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print markdown without rendering")
	channelCmd.Flags().IntVar(&channelLimit, "limit", digest.DefaultTranscriptLimit, "Number of messages to show")
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression (default from config)")
	scheduleCmd.Flags().BoolVar(&scheduleOnce, "once", false, "Deliver one digest now and exit")
}

// printMarkdown renders md for the terminal unless --raw was given.
func printMarkdown(w io.Writer, md string) error {
	if rawOutput {
		_, err := fmt.Fprintln(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
