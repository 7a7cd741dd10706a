package worker

// alerta.go
// Low-folio alerting. Two mechanisms:
//
//   1. Per-record latch: every persisted boleta carries alerta=true while the
//      remaining capacity sits under the threshold. The notification mail
//      fires only on the rising edge (previous record unlatched, this one
//      latched), so a long run under the threshold produces one mail, not one
//      per sale.
//   2. Exhaustion alert from the capacity watchdog, throttled with a Redis
//      SETNX cooldown so restarts don't re-send it.
//
// Delivery rides the mail queue when a dispatcher is wired, so a slow SMTP
// server never stalls the emission path; when the queue is unavailable the
// mail goes out inline rather than getting lost.

import (
	"context"
	"fmt"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	alertaCooldownKey = "alerta:folios:cooldown"
	alertaCooldownTTL = 2 * time.Hour
)

// EmailEnqueuer pushes mail jobs onto the async queue. *Dispatcher satisfies it.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload interface{}) error
}

// evaluarAlertaFolios decides the alerta flag for the record about to be
// persisted and sends the notification mail on the latch's rising edge.
func (w *BoletaWorker) evaluarAlertaFolios(ctx context.Context, restantes int64) bool {
	if w.cfg.AlertaMinFolios <= 0 || restantes >= w.cfg.AlertaMinFolios {
		return false
	}

	previa, err := w.repo.Ultima(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("alerta: no se pudo leer la boleta previa, se asume latch activo")
		return true
	}
	if previa == nil || !previa.Alerta {
		w.enviarAlerta(ctx,
			"Alerta: folios disponibles bajos",
			fmt.Sprintf("Quedan %d folios disponibles en los CAF cargados (umbral: %d).\n"+
				"Solicite un nuevo CAF al SII antes de agotar el rango.", restantes, w.cfg.AlertaMinFolios),
		)
	}
	return true
}

// AlertaAgotamiento fires the exhaustion mail, at most once per cooldown
// window. Used when an emission had to fall back to a fictitious folio and by
// the capacity watchdog.
func AlertaAgotamiento(ctx context.Context, rdb *redis.Client, emails EmailEnqueuer, mailer AlertMailer, destino string, restantes int64) {
	if rdb != nil {
		ok, err := rdb.SetNX(ctx, alertaCooldownKey, "1", alertaCooldownTTL).Result()
		if err != nil {
			log.Warn().Err(err).Msg("alerta: cooldown no disponible, se envia de todos modos")
		} else if !ok {
			return
		}
	}
	log.Warn().Int64("restantes", restantes).Msg("alerta: folios agotados")
	cuerpo := fmt.Sprintf("Los CAF cargados no tienen folios disponibles (restantes: %d).\n"+
		"Las ventas se estan registrando con folios ficticios sin valor tributario.\n"+
		"Cargue un nuevo CAF de inmediato.", restantes)
	entregarAlerta(ctx, emails, mailer, destino, "URGENTE: folios agotados", cuerpo)
}

func (w *BoletaWorker) enviarAlerta(ctx context.Context, asunto, cuerpo string) {
	entregarAlerta(ctx, w.emails, w.mailer, w.cfg.AlertaEmail, asunto, cuerpo)
}

// entregarAlerta queues the mail when possible and falls back to a direct
// send, so the alert survives a Redis outage.
func entregarAlerta(ctx context.Context, emails EmailEnqueuer, mailer AlertMailer, destino, asunto, cuerpo string) {
	if destino == "" {
		log.Error().Str("asunto", asunto).Msg("alerta: sin correo de destino configurado, solo log")
		return
	}
	if emails != nil {
		err := emails.EnqueueEmail(ctx, EmailJobPayload{ToEmail: destino, Subject: asunto, Body: cuerpo})
		if err == nil {
			metrics.AlertasFolios.Inc()
			log.Info().Str("asunto", asunto).Msg("alerta: correo encolado")
			return
		}
		log.Warn().Err(err).Str("asunto", asunto).Msg("alerta: encolar correo fallo, se envia directo")
	}
	if mailer == nil {
		log.Error().Str("asunto", asunto).Msg("alerta: sin mailer configurado, solo log")
		return
	}
	if err := mailer.Send(destino, asunto, cuerpo, ""); err != nil {
		log.Error().Err(err).Str("asunto", asunto).Msg("alerta: envio de correo fallo")
		return
	}
	metrics.AlertasFolios.Inc()
	log.Info().Str("asunto", asunto).Msg("alerta: correo enviado")
}
