package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatbank/internal/config"
	"chatbank/internal/logger"
	"chatbank/internal/store"
)

var exportFormat string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage the session bank",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		st, closeStore := mustOpenStore()
		defer closeStore()

		current, hasCurrent := st.Current()
		for _, sess := range st.Sessions() {
			marker := " "
			if hasCurrent && sess.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %-40s  %d messages  %s\n",
				marker, sess.ID, sess.Title, len(sess.Messages),
				sess.LastUpdated.Format("2006-01-02 15:04"))
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		st, closeStore := mustOpenStore()
		defer closeStore()

		for _, sess := range st.Sessions() {
			if sess.ID != args[0] {
				continue
			}
			fmt.Printf("%s (%s)\n\n", sess.Title, sess.ID)
			for i := range sess.Messages {
				msg := &sess.Messages[i]
				fmt.Printf("[%s] %s\n", msg.Role, msg.Text())
			}
			return
		}
		logger.Fatal("session not found", "session", args[0])
	},
}

var sessionsUseCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Make a session current",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		st, closeStore := mustOpenStore()
		defer closeStore()

		if err := st.SetCurrent(args[0]); err != nil {
			logger.Fatal("failed to switch session", "error", err)
		}
		fmt.Printf("Current session is now %s.\n", args[0])
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		st, closeStore := mustOpenStore()
		defer closeStore()

		if err := st.DeleteSession(args[0]); err != nil {
			logger.Fatal("failed to delete session", "error", err)
		}
		fmt.Printf("Deleted session %s.\n", args[0])
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole session bank to stdout",
	Run: func(_ *cobra.Command, _ []string) {
		st, closeStore := mustOpenStore()
		defer closeStore()

		if err := st.Export(os.Stdout, exportFormat); err != nil {
			logger.Fatal("export failed", "error", err)
		}
	},
}

func init() {
	sessionsExportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json|yaml)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsUseCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
}

func mustOpenStore() (*store.Store, func()) {
	cfg := config.Load()
	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open session store", "error", err)
	}
	return st, closeStore
}
