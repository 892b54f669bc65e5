package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/gorder-bookstore/cmd/bookstore-api/app"
	"github.com/aq2208/gorder-bookstore/configs"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	log.Printf("bookstore-api (%s) listening on %s", env, cfg.App.HTTPAddr)
	if err := a.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
