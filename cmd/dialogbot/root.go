package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "dialogbot",
	Short: "DialogBot is a Telegram front end for a chat model",
	Long: `DialogBot bridges Telegram and an OpenAI-compatible completion API:
it streams replies into a live-edited message, keeps a short per-user
conversation memory and understands photos and voice messages.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
