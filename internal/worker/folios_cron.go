package worker

// folios_cron.go
// Capacity watchdog. Emissions update the folios_restantes gauge as a side
// effect, but on a quiet shift the gauge would go stale and an operator
// loading a new CAF mid-day would not see it reflected until the next sale.
// The watchdog recomputes the remaining capacity on a fixed tick and fires
// the exhaustion alert (cooldown-throttled) when the pool runs dry.

import (
	"context"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/metrics"
	"github.com/dorian-cesar/backend-banos/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const foliosTickInterval = 5 * time.Minute

// FoliosCronConfig holds the watchdog dependencies.
type FoliosCronConfig struct {
	BoletaRepo  repository.BoletaRepository
	Allocator   *folio.Allocator
	RDB         *redis.Client
	Emails      EmailEnqueuer
	Mailer      AlertMailer
	AlertaEmail string
}

// StartFoliosCron launches the background capacity watchdog. It respects the
// context for graceful shutdown.
func StartFoliosCron(ctx context.Context, cfg FoliosCronConfig) {
	go func() {
		ticker := time.NewTicker(foliosTickInterval)
		defer ticker.Stop()

		log.Info().Msg("folios_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("folios_cron: shutting down")
				return
			case <-ticker.C:
				revisarCapacidad(ctx, cfg)
			}
		}
	}()
}

func revisarCapacidad(ctx context.Context, cfg FoliosCronConfig) {
	ultimo, err := cfg.BoletaRepo.UltimoFolio(ctx)
	if err != nil {
		log.Error().Err(err).Msg("folios_cron: leer ultimo folio fallo")
		return
	}
	asg, err := cfg.Allocator.Asignar(ultimo)
	if err != nil {
		log.Error().Err(err).Msg("folios_cron: calcular capacidad fallo")
		return
	}
	metrics.FoliosRestantes.Set(float64(asg.FoliosRestantes))

	if asg.Folio == nil {
		AlertaAgotamiento(ctx, cfg.RDB, cfg.Emails, cfg.Mailer, cfg.AlertaEmail, asg.FoliosRestantes)
	}
}
