package main

import (
	"net/http"
	"time"

	"github.com/farxc/ans-expenses/internal/config"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/farxc/ans-expenses/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type application struct {
	config    config.APIConfig
	store     store.Storage
	appLogger *logger.Logger
	// statistics are expensive aggregate queries over tables that only change
	// when the ETL loads a run, so they are cached per top size
	statsCache *expirable.LRU[int, store.Statistics]
}

func newApplication(cfg config.APIConfig, storage store.Storage, appLogger *logger.Logger) (*application, error) {
	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	return &application{
		config:     cfg,
		store:      storage,
		appLogger:  appLogger,
		statsCache: expirable.NewLRU[int, store.Statistics](cfg.CacheMax, nil, ttl),
	}, nil
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Route("/operators", func(r chi.Router) {
			r.Get("/", app.handleListOperators)
			r.Get("/ufs", app.handleListRegions)
			r.Get("/{cnpj}", app.handleGetOperator)
			r.Get("/{cnpj}/expenses", app.handleGetOperatorExpenses)
		})
		r.Get("/statistics", app.handleGetStatistics)
		r.Get("/runs", app.handleGetRuns)
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	const component = "API"

	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	app.appLogger.Info(component, "Server started: addr=%s", app.config.Addr)
	return srv.ListenAndServe()
}
