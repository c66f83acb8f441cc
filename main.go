package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghdquddnr/Termix-sub002/internal/config"
	"github.com/ghdquddnr/Termix-sub002/internal/database"
	"github.com/ghdquddnr/Termix-sub002/internal/handlers"
	"github.com/ghdquddnr/Termix-sub002/internal/hoststore"
	"github.com/ghdquddnr/Termix-sub002/internal/logging"
	"github.com/ghdquddnr/Termix-sub002/internal/tailsession"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--import-hosts" {
		runImportHosts(os.Args[2:])
		return
	}

	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	if config.Cfg.HostsFile != "" {
		n, err := hoststore.ImportYAML(config.Cfg.HostsFile)
		if err != nil {
			log.Fatalf("Host inventory import: %v", err)
		}
		log.Printf("Imported %d host(s) from %s", n, config.Cfg.HostsFile)
	}

	registry := tailsession.NewRegistry()
	handlers.Sessions = registry

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.HealthCheck)
	r.Get("/ws/tail", handlers.TailWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/hosts", handlers.ListHosts)
		r.Post("/hosts", handlers.CreateHost)
		r.Get("/hosts/{id}", handlers.GetHost)
		r.Delete("/hosts/{id}", handlers.DeleteHost)
		r.Get("/hosts/{id}/files", handlers.BrowseFiles)

		r.Get("/server-log", handlers.GetServerLog)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	if n := registry.CloseAll(); n > 0 {
		log.Printf("Closed %d tail session(s)", n)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func runImportHosts(args []string) {
	if len(args) < 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "Usage: termix-relay --import-hosts <inventory.yaml>")
		os.Exit(1)
	}

	config.Load()
	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	n, err := hoststore.ImportYAML(args[0])
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Imported %d host(s) from %s\n", n, args[0])
}
