package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Plabrum/trackstar/internal/cmd/packloader"
)

func main() {
	_ = godotenv.Load()

	cfg, err := packloader.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PACKLOADER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := packloader.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to load packs: %v", err)
	}
}
