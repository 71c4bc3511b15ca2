package main

import (
	"log/slog"
	"os"

	"github.com/imgsync/imgsync/cmd/imgsync/commands"
)

func main() {
	// Text logs on stderr until the root command applies --log-level/--log-format
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
