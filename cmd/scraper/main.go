package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vodeneev/sofascore-scraper/cmd/scraper/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
