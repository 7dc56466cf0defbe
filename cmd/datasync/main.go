package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gnitoahc/go-dotenv"
	log "github.com/sirupsen/logrus"

	"datasync/internal/cli"
	"datasync/internal/config"
)

func main() {
	cfg := config.Load()
	if dotenv.Get("DATASYNC_LOG_VERBOSE", "false") == "true" {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&cfg, cli.Env{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
