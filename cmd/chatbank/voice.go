package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatbank/internal/config"
	"chatbank/internal/logger"
	"chatbank/internal/voice"
)

// voiceCmd opens the realtime duplex audio channel.
var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Open the realtime voice channel",
	Long: `Open a live bidirectional audio session: microphone audio streams to the
engine while synthesized speech plays back. Requires a recorder (arecord, rec,
or ffmpeg) and a player (ffplay, aplay, or play) on PATH. Press Ctrl-C to hang
up.`,
	Run: runVoice,
}

func runVoice(cmd *cobra.Command, _ []string) {
	cfg := config.Load()
	if err := cfg.RequireCredential(); err != nil {
		logger.Fatal("voice channel needs a cloud credential", "error", err)
	}

	capture, err := voice.NewMicCapture()
	if err != nil {
		logger.Fatal("no capture device", "error", err)
	}
	player, err := voice.NewPCMPlayer(voice.OutputSampleRate)
	if err != nil {
		logger.Fatal("no playback device", "error", err)
	}
	defer player.Close()

	sched := voice.NewScheduler(player, voice.OutputSampleRate, nil)
	duplex := voice.NewDuplex(voice.NewLiveDialer(cfg.GeminiAPIKey, cfg.VoiceName), capture, sched)

	if err := duplex.Start(cmd.Context()); err != nil {
		logger.Fatal("failed to open voice session", "error", err)
	}
	fmt.Println("Voice channel open. Press Ctrl-C to hang up.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	duplex.Stop()
	fmt.Println("Voice channel closed.")
}
