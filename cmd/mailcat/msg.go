package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khsu/mailcat/internal/msgtool"
)

// newMsgCmd groups the MsgTool subcommands. Server and credentials
// come from flags or the MSGTOOL_SERVER, MSG_USER, and MSG_PASSWORD
// environment variables.
func newMsgCmd(_ *string) *cobra.Command {
	var (
		server   string
		user     string
		password string
	)

	msg := &cobra.Command{
		Use:   "msg",
		Short: "Talk to a MsgTool messaging server",
	}

	msg.PersistentFlags().StringVar(&server, "server", "", "MsgTool server URL")
	msg.PersistentFlags().StringVar(&user, "user", "", "MsgTool username")
	msg.PersistentFlags().StringVar(&password, "password", "", "MsgTool password")

	client := func() *msgtool.Client {
		return msgtool.NewClient(server, user, password)
	}

	msg.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check that the server is reachable",
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := client().Health(context.Background())
				if err != nil {
					return err
				}
				fmt.Println(st.Status)
				return nil
			},
		},
		newMsgInboxCmd(client),
		newMsgSentCmd(client),
		&cobra.Command{
			Use:   "read <id>",
			Short: "Read one message and mark it read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := client().Read(context.Background(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("From: %s\n", m.From)
				if m.Time != "" {
					fmt.Printf("Time: %s\n", m.Time)
				}
				fmt.Printf("\n%s\n", m.Msg)
				return nil
			},
		},
		newMsgSendCmd(client),
		&cobra.Command{
			Use:   "reply <id> <text>",
			Short: "Reply to a message",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := client().Reply(
					context.Background(), args[0], args[1],
				)
				if err != nil {
					return err
				}
				if st.ID != "" {
					fmt.Printf("Sent %s.\n", st.ID)
				} else {
					fmt.Println("Sent.")
				}
				return nil
			},
		},
		newMsgMentionsCmd(client),
		&cobra.Command{
			Use:   "notify",
			Short: "Poll the server for notification state",
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := client().Notify(context.Background())
				if err != nil {
					return err
				}
				if st.Status != "" {
					fmt.Println(st.Status)
				} else {
					fmt.Println("ok")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "users",
			Short: "List registered users",
			RunE: func(cmd *cobra.Command, _ []string) error {
				users, err := client().Users(context.Background())
				if err != nil {
					return err
				}
				for _, u := range users {
					if u.DisplayName != "" {
						fmt.Printf("%s (%s)\n", u.Username, u.DisplayName)
					} else {
						fmt.Println(u.Username)
					}
				}
				return nil
			},
		},
		newMsgRegisterCmd(client),
	)

	return msg
}

func newMsgInboxCmd(client func() *msgtool.Client) *cobra.Command {
	var (
		unread bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List received messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := client().Inbox(context.Background(), unread, limit)
			if err != nil {
				return err
			}
			printMessages(msgs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "only unread messages")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to list")
	return cmd
}

func newMsgSentCmd(client func() *msgtool.Client) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sent",
		Short: "List sent messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := client().Sent(context.Background(), limit)
			if err != nil {
				return err
			}
			printMessages(msgs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to list")
	return cmd
}

func newMsgSendCmd(client func() *msgtool.Client) *cobra.Command {
	var replyTo string

	cmd := &cobra.Command{
		Use:   "send <user> <text>",
		Short: "Send a message to another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := client().Send(
				context.Background(), args[0], args[1], replyTo,
			)
			if err != nil {
				return err
			}
			if st.ID != "" {
				fmt.Printf("Sent %s.\n", st.ID)
			} else {
				fmt.Println("Sent.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&replyTo, "reply-to", "", "message id being answered")
	return cmd
}

func newMsgMentionsCmd(client func() *msgtool.Client) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "mentions",
		Short: "List messages that mention you",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := client().Mentions(context.Background(), limit)
			if err != nil {
				return err
			}
			printMessages(msgs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum messages to list")
	return cmd
}

func newMsgRegisterCmd(client func() *msgtool.Client) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Create an account on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := client().Register(
				context.Background(), args[0], args[1], displayName,
			)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	return cmd
}

func printMessages(msgs []msgtool.Message) {
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range msgs {
		marker := " "
		if m.Unread {
			marker = "*"
		}
		fmt.Printf(
			"%s %-6s %-12s %s\n",
			marker, m.ID, clip(m.From, 12), clip(m.Msg, 60),
		)
	}
}
