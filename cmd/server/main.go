package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/config"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/infra"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/router"
	"github.com/dorian-cesar/backend-banos/internal/sii"
	"github.com/dorian-cesar/backend-banos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger: pretty console in dev, JSON in prod
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Composition root: the SII gateway, CAF store and mailer are shared
	// between the HTTP layer (allocation, solicitar-folios) and the worker
	// pool (the detached emission pipeline).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := sii.NewClient(sii.ClientConfig{
		BaseURL:   cfg.SimpleAPIURL,
		APIKey:    cfg.SimpleAPIKey,
		CertPath:  cfg.CertPath,
		CertRut:   cfg.CertRut,
		CertPass:  cfg.CertPass,
		EmisorRut: cfg.EmisorRutCompleto(),
		Ambiente:  cfg.Ambiente,
	})
	siiCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	mailer := infra.NewMailer(cfg)
	cafStore := caf.NewStore(cfg.CAFDirectory)
	allocator := folio.NewAllocator(cafStore)
	boletaRepo := repository.NewBoletaRepository(db)
	dispatcher := worker.NewDispatcher(rdb)

	emisor := sii.Emisor{
		RutCompleto: cfg.EmisorRutCompleto(),
		RazonSocial: cfg.EmisorRazonSocial,
		Giro:        cfg.EmisorGiro,
		Direccion:   cfg.EmisorDireccion,
		Comuna:      cfg.EmisorComuna,
	}
	emisionCfg := worker.DefaultEmisionConfig()
	emisionCfg.AlertaMinFolios = cfg.AlertaMinFolios
	emisionCfg.AlertaEmail = cfg.AlertaEmail
	emisionCfg.PDFStoragePath = cfg.PDFStoragePath

	handlers := &worker.Handlers{
		Boleta: worker.NewBoletaWorker(gw, siiCB, boletaRepo, cafStore, allocator, mailer, dispatcher, rdb, emisor, emisionCfg),
		Email:  worker.NewEmailWorker(mailer),
	}
	worker.StartWorkerPool(ctx, rdb, handlers, cfg.WorkerPoolSize)

	worker.StartFoliosCron(ctx, worker.FoliosCronConfig{
		BoletaRepo:  boletaRepo,
		Allocator:   allocator,
		RDB:         rdb,
		Emails:      dispatcher,
		Mailer:      mailer,
		AlertaEmail: cfg.AlertaEmail,
	})

	r := router.New(cfg, db, rdb, siiCB, cafStore, gw, mailer, dispatcher)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("backend-banos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
