package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sigacad.org/internal/auth"
	"sigacad.org/internal/httpapi"
	"sigacad.org/internal/obs"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SIGACAD_COMMIT"))

	// Signing secrets are the one fatal misconfiguration: without them no
	// token can ever verify, so fail at startup rather than per request.
	accessSecret := os.Getenv("SIGACAD_ACCESS_SECRET")
	refreshSecret := os.Getenv("SIGACAD_REFRESH_SECRET")

	codec, err := auth.NewCodec(accessSecret, refreshSecret,
		auth.WithAccessTTL(envDuration("SIGACAD_ACCESS_TTL", 15*time.Minute)),
		auth.WithRefreshTTL(envDuration("SIGACAD_REFRESH_TTL", 7*24*time.Hour)),
	)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	passwords := auth.NewPasswordPolicy(
		auth.WithMinLength(envInt("SIGACAD_MIN_PASSWORD_LEN", 8)),
		auth.WithBcryptCost(envInt("SIGACAD_BCRYPT_COST", 12)),
	)

	dsn := os.Getenv("SIGACAD_PG_DSN")
	if dsn == "" {
		log.Fatalf("SIGACAD_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	svc, err := auth.NewService(
		auth.NewPGIdentityStore(db),
		auth.NewPGRevocationStore(db),
		codec,
		passwords,
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, httpapi.Options{})

	addr := os.Getenv("SIGACAD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := auth.NewSweeper(svc, envDuration("SIGACAD_SWEEP_INTERVAL", time.Hour))
	go sweeper.Run(sweepCtx)

	log.Printf("Starting sigacad-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Fatalf("%s: invalid duration %q", key, raw)
	}
	return d
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s: invalid integer %q", key, raw)
	}
	return n
}
