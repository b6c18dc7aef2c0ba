package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jagmitg/botservice/internal/bot"
	"github.com/jagmitg/botservice/runtime/types"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	var conversationID, userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in the terminal",
		Long: `chat runs the bot in-process and reads one turn per line from stdin.
Type "quit" or send EOF to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			if conversationID == "" {
				conversationID = uuid.NewString()
			}
			return chat(ctx, a.bot, conversationID, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (random when empty)")
	cmd.Flags().StringVar(&userID, "user", "", "User id profiles are stored under")
	return cmd
}

// chat opens the conversation with an empty turn so the bot greets first,
// then sends each input line as a turn.
func chat(ctx context.Context, b *bot.Bot, conversationID, userID string, in io.Reader, out io.Writer) error {
	send := func(text string) error {
		acts, err := b.OnTurn(ctx, types.Turn{ConversationID: conversationID, UserID: userID, Text: text})
		if err != nil {
			return err
		}
		printActivities(out, acts)
		return nil
	}

	if err := send(""); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "quit", "exit":
			return nil
		}
		if err := send(line); err != nil {
			return err
		}
	}
}

func printActivities(out io.Writer, acts []types.Activity) {
	for _, act := range acts {
		if act.Text != "" {
			fmt.Fprintf(out, "bot> %s\n", act.Text)
		}
		if len(act.SuggestedActions) > 0 {
			fmt.Fprintf(out, "     [%s]\n", strings.Join(act.SuggestedActions, " | "))
		}
		for _, att := range act.Attachments {
			fmt.Fprintf(out, "     [card: %s]\n", att.Name)
		}
	}
}
