package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophblog/internal/server"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Printf("%v", err)
		return 2
	}

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		return 1
	}
	return 0
}
