// README: Entry point; loads config, wires services, starts HTTP server and outbox worker.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"courio/internal/config"
	httptransport "courio/internal/http"
	"courio/internal/infra"
	"courio/internal/maps"
	"courio/internal/modules/dispatch"
	"courio/internal/modules/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Development)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("COURIO_FIREBASE_PROJECT_ID is required")
	}
	fsClient, err := infra.NewFirestore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firestore init", zap.Error(err))
	}
	defer fsClient.Close()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	store := order.NewFirestoreStore(fsClient)
	dispatchClient := dispatch.NewClient(cfg.Dispatch)

	outbox := dispatch.NewOutbox(dbPool, store, dispatchClient, cfg.Outbox, logger)
	if err := outbox.EnsureSchema(ctx); err != nil {
		logger.Fatal("outbox schema", zap.Error(err))
	}
	syncer := dispatch.NewSyncer(store, dispatchClient, outbox, logger)

	var geocoder order.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		geocoder = g
	}

	orderSvc := order.NewService(store, syncer, geocoder, logger)
	webhook := dispatch.NewWebhook(orderSvc, dispatch.NewEventDeduper(redisClient), logger)

	router := httptransport.NewRouter(orderSvc, webhook, logger)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go outbox.RunWorker(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server", zap.Error(err))
	}
}
