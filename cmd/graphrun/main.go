package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/BTankut/neuralcanvas/internal/api"
	"github.com/BTankut/neuralcanvas/internal/config"
	"github.com/BTankut/neuralcanvas/internal/operator"
	"github.com/BTankut/neuralcanvas/internal/search"
	"github.com/BTankut/neuralcanvas/internal/session"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("graphrun v0.1.0")
	fmt.Println("Usage: graphrun serve")
}

func serve() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fatal panic", "recover", r)
			os.Exit(2)
		}
	}()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	searchClient := search.New(cfg.Search.BaseURL, cfg.Search.Timeout)

	sessions := session.NewManager(session.Deps{
		Providers:      cfg.Providers,
		Search:         searchClient,
		Registry:       operator.NewRegistry(),
		DefaultModel:   cfg.DefaultModel,
		FallbackModels: cfg.FallbackModels,
		WorkerCount:    cfg.Scheduler.WorkerConcurrency,
	})

	srv := api.NewServer(sessions, cfg.Providers)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting graph execution engine", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
