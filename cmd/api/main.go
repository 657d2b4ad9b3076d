package main

import (
	"log"
	"os"

	"github.com/farxc/ans-expenses/internal/config"
	"github.com/farxc/ans-expenses/internal/db"
	"github.com/farxc/ans-expenses/internal/env"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/farxc/ans-expenses/internal/store"
)

func main() {
	const component = "Main"
	log.SetFlags(0)

	if err := env.Load(".env"); err != nil {
		log.Printf("no .env loaded: %v", err)
	}
	cfg := config.FromEnv()
	appLogger := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))

	database, err := db.New(
		cfg.DB.Driver,
		cfg.DB.Addr,
		cfg.DB.MaxOpenConns,
		cfg.DB.MaxIdleConns,
		cfg.DB.MaxIdleTime)
	if err != nil {
		appLogger.Fatal(component, "Database connection failed: error=%v", err)
		return
	}
	defer database.Close()
	appLogger.Info(component, "Database connection pool established")

	storage := store.NewStorage(database)

	app, err := newApplication(cfg.API, *storage, appLogger)
	if err != nil {
		appLogger.Fatal(component, "Invalid API configuration: error=%v", err)
		return
	}

	mux := app.mount()

	if err := app.run(mux); err != nil {
		appLogger.Fatal(component, "Server stopped: error=%v", err)
	}
}
