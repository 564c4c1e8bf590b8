// Package main provides the ChatBank CLI entry point. ChatBank is a
// sovereign AI client: streaming chat sessions against cloud and local
// engines, persistent session bank, code repair, and a realtime voice
// channel.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatbank/internal/config"
	"chatbank/internal/engine"
	"chatbank/internal/logger"
	"chatbank/internal/store"
	"chatbank/pkg/banktypes"
)

var (
	logLevel string
	logFile  string
	version  = "0.1.0" // This could be set at build time
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatbank",
	Short: "ChatBank - sovereign AI chat client",
	Long: `ChatBank is a command-line client for the Khaled Al-Muntasir sovereign AI.
It keeps a persistent bank of chat sessions, streams replies from cloud and
local engines, repairs broken code, and carries a realtime voice channel.`,
	Run: runChat, // Default behavior is the interactive chat loop
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("ChatBank v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-file flag: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	if err := logger.Configure(logLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// openStore builds the session store for the configured driver. The returned
// closer releases the sqlite handle; for the file driver it is a no-op.
func openStore(cfg *config.Config) (*store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "sqlite":
		repo, err := store.OpenSQLiteRepository(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session database: %w", err)
		}
		return store.Open(repo), func() { _ = repo.Close() }, nil
	case "file", "":
		return store.Open(store.NewFileRepository(cfg.StorePath)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newCoordinator(cfg *config.Config) *engine.Coordinator {
	return engine.NewCoordinator(
		engine.NewGeminiBackend(cfg.GeminiAPIKey),
		engine.NewLocalBackend(cfg.LocalBaseURL),
		engine.NewGeminiImageBackend(cfg.GeminiAPIKey),
		cfg.ImageQuality,
	)
}

// parseMode maps a CLI mode name to an engine mode. The full display names
// are accepted too.
func parseMode(name string) (banktypes.EngineMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "flash":
		return banktypes.EngineModeFlash, nil
	case "ultra":
		return banktypes.EngineModeUltra, nil
	case "local", "local-x1":
		return banktypes.EngineModeLocalX1, nil
	case strings.ToLower(string(banktypes.EngineModeFlash)):
		return banktypes.EngineModeFlash, nil
	case strings.ToLower(string(banktypes.EngineModeUltra)):
		return banktypes.EngineModeUltra, nil
	case strings.ToLower(string(banktypes.EngineModeLocalX1)):
		return banktypes.EngineModeLocalX1, nil
	default:
		return "", fmt.Errorf("unknown engine mode %q (want flash, ultra, or local)", name)
	}
}
