package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Vovarama1992/webchat-skin/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "webchat",
	Short:        "webchat serves the chat skin backend and replays recorded chats",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newReplayCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger = logger.Level(level)
	log.Logger = logger
	return logger
}
