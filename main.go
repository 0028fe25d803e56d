package main

import (
	"fmt"
	"os"

	"video-trimmer/config"
	"video-trimmer/logging"
	"video-trimmer/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	app, err := ui.NewApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing app: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nPlease ensure ffmpeg and ffprobe are in the bin/ folder, on PATH,\n")
		fmt.Fprintf(os.Stderr, "or set %s to the folder containing them.\n", config.EnvFFmpegDir)
		os.Exit(1)
	}

	app.Run()
}
