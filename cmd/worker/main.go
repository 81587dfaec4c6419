package main

import (
	"FireBox/config"
	"FireBox/internal/repo"
	"FireBox/internal/storage"
	"FireBox/internal/worker"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config.InitConfig()
	repo.InitMysql()
	repo.InitRedis()
	storage.InitMinio()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("gc worker started")
	if err := worker.RunGCWorker(ctx); err != nil {
		log.Fatalf("gc worker stopped: %v", err)
	}
}
