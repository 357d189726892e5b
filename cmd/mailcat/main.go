package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "mailcat",
		Short: "A terminal mail client with a local message cache",
		Long: "mailcat keeps a local cache of your mailbox and syncs it " +
			"incrementally over IMAP or POP3. Run without arguments to " +
			"open the interactive client.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cfgPath)
		},
	}

	root.PersistentFlags().StringVar(
		&cfgPath, "config", "",
		"config file path (default ~/.config/mailcat/config.yaml)",
	)

	root.AddCommand(
		newReceiveCmd(&cfgPath),
		newSendCmd(&cfgPath),
		newSetupCmd(&cfgPath),
		newConfigCmd(&cfgPath),
		newMsgCmd(&cfgPath),
	)

	return root
}
