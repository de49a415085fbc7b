package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "gpt-generals/internal/api/http"
	"gpt-generals/internal/api/ws"
	"gpt-generals/internal/config"
	"gpt-generals/internal/room"
	"gpt-generals/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	mem := store.NewMemoryStore()
	rm := room.NewManager(mem, cfg)
	hub := ws.NewHub(rm, cfg)
	rm.SetBroadcaster(hub)
	router := httpapi.SetupRouter(rm, hub)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		hub.Shutdown() // stop room runners once connections are drained
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
