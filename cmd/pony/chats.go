// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/cmd/pony/cli"
	"github.com/AndyO2/pony-express/cmd/pony/viewer"
)

func chatsCommand(env *environment) *cli.Command {
	var params struct {
		cli.JSONOutput
		Search string `flag:"search,s" desc:"fuzzy filter on chat names"`
	}
	return &cli.Command{
		Name:    "chats",
		Summary: "List chats",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("chats", &params) },
		Examples: []cli.Example{
			{Description: "Chats whose name contains n, s, m in order", Command: "pony chats --search nsm"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return cli.Validation("chats takes no arguments")
			}
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			collection, err := a.Chat.ListChats(ctx)
			if err != nil {
				return err
			}
			chats := chat.SearchChats(collection.Chats, params.Search)

			params.Writer = env.stdout
			if done, err := params.EmitJSON(chats); done {
				return err
			}
			if len(chats) == 0 {
				fmt.Fprintln(env.stdout, "No chats")
				return nil
			}
			tw := tabwriter.NewWriter(env.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tCREATED")
			for _, c := range chats {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Name, len(c.UserIDs), formatTime(c.CreatedAt.Time))
			}
			return tw.Flush()
		},
	}
}

func messagesCommand(env *environment) *cli.Command {
	var params struct {
		cli.JSONOutput
		Limit int `flag:"limit,n" default:"0" desc:"show only the last N messages (0 for all)"`
	}
	return &cli.Command{
		Name:    "messages",
		Summary: "Show the messages of a chat",
		Usage:   "pony messages <chat-id> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("messages", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("messages takes exactly one argument, the chat id")
			}
			if params.Limit < 0 {
				return cli.Validation("--limit must not be negative")
			}
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			collection, err := a.Chat.ListMessages(ctx, chat.ID(args[0]))
			if err != nil {
				return err
			}
			messages := collection.Messages
			if params.Limit > 0 && len(messages) > params.Limit {
				messages = messages[len(messages)-params.Limit:]
			}

			params.Writer = env.stdout
			if done, err := params.EmitJSON(messages); done {
				return err
			}
			for _, message := range messages {
				fmt.Fprintf(env.stdout, "%s  %s: %s\n", formatTime(message.CreatedAt.Time), message.Author(), message.Text)
			}
			return nil
		},
	}
}

func sendCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "send",
		Summary: "Post a message to a chat",
		Usage:   "pony send <chat-id> <text...>",
		Examples: []cli.Example{
			{Command: "pony send 1 'Get away from her, you...'"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return cli.Validation("send takes a chat id and the message text")
			}
			text := strings.Join(args[1:], " ")
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Chat.PostMessage(ctx, chat.ID(args[0]), text)
			if err != nil {
				return err
			}
			id := "?"
			if result.Message != nil {
				id = string(result.Message.ID)
			}
			fmt.Fprintf(env.stdout, "Posted message %s (%s)\n", id, a.Session.Location().Path)
			return nil
		},
	}
}

func viewCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "view",
		Summary: "Open the interactive viewer",
		Usage:   "pony view [chat-id]",
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return cli.Validation("view takes at most one argument, the chat id")
			}
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var initial chat.ID
			if len(args) == 1 {
				initial = chat.ID(args[0])
			}
			return viewer.Run(ctx, a.Chat, a.Session, initial)
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
