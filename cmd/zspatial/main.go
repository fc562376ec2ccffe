package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/api"
	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/repository"
	"github.com/navikt/zspatial/internal/service"
	"github.com/navikt/zspatial/internal/storage"
	"github.com/navikt/zspatial/internal/timesync"
	"github.com/navikt/zspatial/internal/utils"
	"github.com/navikt/zspatial/internal/web"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("main")

func main() {
	serverConfig := config.GetServerConfig()
	if err := utils.ConfigureLogging(serverConfig.LogLevel); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	gridConfig := config.GetGridConfig()

	// Initialize the repository using the factory
	repo, err := repository.NewRepository(config.GetRedisConfig())
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Errorf("Error closing repository: %v", err)
		}
	}()

	// Object storage is optional; without it rooms are never cleaned up and
	// upload tickets are unavailable
	var cleaner storage.Cleaner = storage.NopCleaner{}
	var uploader api.Uploader
	storageConfig := config.GetStorageConfig()
	if storageConfig.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.NewStore(ctx, storageConfig)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		cleaner = store
		uploader = store
		log.Infof("Using object storage bucket %s at %s", storageConfig.Bucket, storageConfig.Endpoint)
	}

	clock := timesync.SystemClock{}
	events := web.NewSSEManager()
	dispatcher := broadcast.NewDispatcher(events)

	rooms := service.NewRoomService(dispatcher, cleaner, repo, service.Options{
		Grid:         gridConfig,
		Horizon:      serverConfig.ScheduleHorizon,
		TickInterval: serverConfig.TickInterval,
		Clock:        clock,
	})
	rooms.RegisterUpdateCallback(events.PublishSnapshot)

	health := api.NewHealth()
	router := mux.NewRouter()
	api.SetupRoutes(router, api.Dependencies{
		Repo:          repo,
		Rooms:         rooms,
		Uploader:      uploader,
		Health:        health,
		WebhookSecret: config.GetUploadConfig().WebhookSecret,
	})
	sockets := web.NewSocketHandler(rooms, web.NewMessageRouter(rooms, clock, gridConfig.Size), clock)
	web.RegisterRoutes(router, sockets, events)

	server := &http.Server{
		Addr:        ":" + serverConfig.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Disabled for WebSocket and SSE connections
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting zspatial server on port %s", serverConfig.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		health.SetDraining()

		// Close SSE observers first so server.Shutdown is not held up by them
		events.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			log.Errorf("Error shutting down server: %v", err)
		}
		sockets.Close()
		sockets.Wait()
		return rooms.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped with error: %v", err)
		return
	}
	log.Info("Server gracefully stopped")
}
