package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/auth"
	"rps-lite/apps/server/internal/gateway"
	"rps-lite/apps/server/internal/ledger"
	"rps-lite/apps/server/internal/lobby"
	"rps-lite/apps/server/internal/ticket"
	"rps-lite/game/opponent"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("[Server] No .env file found, using process environment")
	}
	setupLogging()

	authService, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init auth service: %v", err)
	}
	defer authService.Close()
	ledgerService, ledgerMode, err := ledger.NewServiceFromEnv(authMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()
	issuer, err := ticket.NewIssuerFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init ticket issuer: %v", err)
	}

	registry := opponent.NewRegistry()
	if err := registry.LoadDefaults(); err != nil {
		log.Fatalf("[Server] Failed to load personas: %v", err)
	}
	if path := strings.TrimSpace(os.Getenv("PERSONAS_FILE")); path != "" {
		if err := registry.LoadFromFile(path); err != nil {
			log.Fatalf("[Server] Failed to load personas from %s: %v", path, err)
		}
	}
	opponents := opponent.NewManager(registry, 0)

	lby := lobby.New(opponents, ledgerService, issuer, lobby.WithDefaultRounds(envInt("DEFAULT_ROUNDS", 0)))
	gw := gateway.New(authService, lby, splitList(os.Getenv("ALLOWED_ORIGINS")))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(authService).RegisterRoutes(mux)
	ledger.NewHTTPHandler(authService, ledgerService, issuer).RegisterRoutes(mux)
	lobby.NewHTTPHandler(lby).RegisterRoutes(mux)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitorStop := make(chan struct{})
	go lby.RunJanitor(time.Minute, janitorStop)

	go func() {
		log.Infof("[Server] Auth mode: %s", authMode)
		log.Infof("[Server] Ledger mode: %s", ledgerMode)
		log.Infof("[Server] Personas loaded: %d", registry.Count())
		log.Infof("[Server] Starting WebSocket server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] Failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("[Server] Shutting down")
	close(janitorStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("[Server] Shutdown: %v", err)
	}
	lby.Shutdown()
}

func setupLogging() {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
