package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/khsu/mailcat/internal/app"
	"github.com/khsu/mailcat/internal/credential"
	"github.com/khsu/mailcat/internal/model"
	"github.com/khsu/mailcat/internal/smtp"
	"github.com/khsu/mailcat/internal/store"
	mailsync "github.com/khsu/mailcat/internal/sync"
)

// resolveConfigPath applies the default when --config is not given.
func resolveConfigPath(cfgPath string) string {
	if cfgPath != "" {
		return cfgPath
	}
	return model.DefaultConfigPath()
}

// openEnv loads the config and opens the cache store beside it. When
// the config carries no password, the system keyring is consulted.
func openEnv(cfgPath string) (*model.AppConfig, string, *store.SQLiteStore, error) {
	path := resolveConfigPath(cfgPath)

	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, "", nil, err
	}

	if cfg.Password == "" && cfg.Email != "" {
		if pw, err := credential.Get(cfg.Email); err == nil {
			cfg.Password = pw
		}
	}

	s, err := store.NewSQLiteStore(model.CachePath(path))
	if err != nil {
		return nil, "", nil, fmt.Errorf("opening mail cache: %w", err)
	}

	return cfg, path, s, nil
}

// runTUI starts the interactive client.
func runTUI(cfgPath string) error {
	cfg, path, s, err := openEnv(cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(
		app.New(*cfg, path, s),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

func newReceiveCmd(cfgPath *string) *cobra.Command {
	var (
		folder string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Fetch new mail into the local cache and list it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, s, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if cfg.Email == "" {
				return fmt.Errorf("no account configured; run: mailcat setup")
			}

			r := mailsync.New(s)
			result := r.RunWindow(
				context.Background(),
				app.BuildMailbox(*cfg), cfg.Email, folder, count,
			)
			if result.Err != nil {
				return fmt.Errorf("%s", result.FailureText())
			}

			fmt.Printf(
				"Fetched %d new messages (%d skipped), %d cached.\n",
				result.Fetched, result.Skipped, len(result.Messages),
			)
			for _, row := range result.Messages {
				marker := " "
				if !row.Seen() {
					marker = "*"
				}
				fmt.Printf(
					"%s %-6s %-30s %s\n",
					marker, row.UID, clip(row.FromAddr, 30), row.Subject,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "INBOX", "folder to sync")
	cmd.Flags().IntVar(&count, "count", mailsync.FetchWindow,
		"most-recent messages to consider (0 = all)")
	return cmd
}

func newSendCmd(cfgPath *string) *cobra.Command {
	var (
		to       []string
		cc       []string
		subject  string
		body     string
		bodyFile string
		attach   []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message without opening the UI",
		Long: "Sends a message through the configured SMTP server. " +
			"The body comes from --body, --file, or stdin, in that order.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, s, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if cfg.Email == "" {
				return fmt.Errorf("no account configured; run: mailcat setup")
			}
			if len(to) == 0 {
				return fmt.Errorf("at least one --to recipient is required")
			}

			if body == "" && bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("reading body file: %w", err)
				}
				body = string(data)
			}
			if body == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading body from stdin: %w", err)
				}
				body = string(data)
			}

			out := smtp.OutgoingMessage{
				To:      to,
				CC:      cc,
				Subject: subject,
				Body:    body,
			}
			for _, path := range attach {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading attachment %s: %w", path, err)
				}
				out.Attachments = append(out.Attachments, smtp.Attachment{
					Filename: filepath.Base(path),
					Data:     data,
				})
			}

			sender := smtp.New(
				cfg.SMTP, cfg.Name, cfg.Email, cfg.Password, cfg.Signature,
			)
			if err := sender.Send(context.Background(), out); err != nil {
				return err
			}

			fmt.Printf("Sent to %s.\n", strings.Join(to, ", "))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient address (repeatable)")
	cmd.Flags().StringSliceVar(&cc, "cc", nil, "CC address (repeatable)")
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&body, "body", "", "message body (stdin when omitted)")
	cmd.Flags().StringVar(&bodyFile, "file", "", "read the message body from a file")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "attachment file path (repeatable)")
	return cmd
}

func newSetupCmd(cfgPath *string) *cobra.Command {
	var (
		email      string
		name       string
		password   string
		signature  string
		protocol   string
		useKeyring bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the account from the command line",
		Long: "Writes account settings to the config file. Omitted flags " +
			"keep their current values; server hosts and ports keep the " +
			"built-in defaults unless edited in the interactive settings.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolveConfigPath(*cfgPath)

			cfg, err := model.LoadConfig(path)
			if err != nil {
				return err
			}

			if email != "" {
				cfg.Email = email
			}
			if name != "" {
				cfg.Name = name
			}
			if password != "" {
				cfg.Password = password
			}
			if signature != "" {
				cfg.Signature = signature
			}
			if protocol != "" {
				if protocol != model.ProtocolIMAP &&
					protocol != model.ProtocolPOP3 {
					return fmt.Errorf(
						"invalid protocol %q: must be %s or %s",
						protocol, model.ProtocolIMAP, model.ProtocolPOP3,
					)
				}
				cfg.RecvProtocol = protocol
			}

			if cfg.Email == "" {
				return fmt.Errorf("--email is required on first setup")
			}

			if useKeyring && cfg.Password != "" {
				if err := credential.Set(cfg.Email, cfg.Password); err != nil {
					return fmt.Errorf("storing password in keyring: %w", err)
				}
				cfg.Password = ""
			}

			if err := model.SaveConfig(path, cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration saved to %s.\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email address")
	cmd.Flags().StringVar(&name, "name", "", "display name for the From header")
	cmd.Flags().StringVar(&password, "password", "", "account password (stored encrypted)")
	cmd.Flags().StringVar(&signature, "signature", "", "signature appended to sent mail")
	cmd.Flags().StringVar(&protocol, "protocol", "", "receive protocol: imap or pop3")
	cmd.Flags().BoolVar(&useKeyring, "use-keyring", false,
		"store the password in the system keyring instead of the config file")
	return cmd
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolveConfigPath(*cfgPath)

			cfg, err := model.LoadConfig(path)
			if err != nil {
				return err
			}

			password := "(not set)"
			if cfg.Password != "" {
				password = "********"
			}

			fmt.Printf("Config file:      %s\n", path)
			fmt.Printf("Cache database:   %s\n", model.CachePath(path))
			fmt.Printf("Encryption key:   %s\n", model.KeyPath(path))
			fmt.Printf("Email:            %s\n", cfg.Email)
			fmt.Printf("Name:             %s\n", cfg.Name)
			fmt.Printf("Password:         %s\n", password)
			fmt.Printf("Receive protocol: %s\n", cfg.RecvProtocol)
			fmt.Printf("SMTP:             %s:%d (starttls=%t verify_ssl=%t)\n",
				cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.StartTLS, cfg.SMTP.VerifySSL)
			fmt.Printf("IMAP:             %s:%d (ssl=%t)\n",
				cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.SSL)
			fmt.Printf("POP3:             %s:%d (ssl=%t)\n",
				cfg.POP3.Host, cfg.POP3.Port, cfg.POP3.SSL)
			return nil
		},
	}
}

// clip shortens a string for column display.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
