package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"psikoadmin/internal/app"
	"psikoadmin/internal/db"
	"psikoadmin/internal/taxonomy"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := app.LoadConfig()

	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(ctx, db.Config{
		Driver:          driver,
		DSN:             cfg.DBDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer dbConn.Close()

	a, err := app.New(cfg, dbConn)
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	if err := a.Taxonomy.SeedDefaults(ctx, taxonomy.DefaultCatalog); err != nil {
		return fmt.Errorf("taxonomy seed error: %w", err)
	}
	go a.RunBackground(ctx)

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}
	srv := &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("psikoadmin web listening on %s driver=%s", ln.Addr(), driver)
	return serve(ctx, srv, ln, shutdownTimeout)
}

// serve runs srv on ln until ctx is done, then drains in-flight requests. It
// returns only once Shutdown has returned.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, drain time.Duration) error {
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	<-served
	log.Printf("psikoadmin web stopped")
	return nil
}
