package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/whispersubs/whispersubs/cmd"
	"github.com/whispersubs/whispersubs/internal/buildinfo"
	"github.com/whispersubs/whispersubs/internal/conf"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, buildinfo.Version)
	rootCmd.Version = buildinfo.String()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
