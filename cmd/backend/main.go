package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"filingdesk/internal/api"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("App start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.StartServer(ctx); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("App terminated")
}
