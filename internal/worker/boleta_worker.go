package worker

// boleta_worker.go
// Detached stage of the emission pipeline. The HTTP layer already answered the
// client with the assigned (or fictitious) folio; from here on every failure
// is absorbed into a persisted fallback record; the client never learns of
// post-acknowledgment errors except through reporting endpoints.
//
// Per emission: DTE generation → envelope → submission → status polling →
// (RSC renumbering) → persist exactly one record → alert evaluation.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/fecha"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/infra"
	"github.com/dorian-cesar/backend-banos/internal/metrics"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/sii"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// BoletaJobPayload is the job envelope sent to QueueBoletas.
// Folio 0 means no real folio was assignable for the first item (the service
// already persisted the fictitious record for it when ParentFolio is set).
type BoletaJobPayload struct {
	Producto        string          `json:"producto"`
	Precio          decimal.Decimal `json:"precio"`
	Folio           int64           `json:"folio"`
	CAFRuta         string          `json:"caf_ruta"`
	FoliosRestantes int64           `json:"folios_restantes"`

	// Batch emission: CantidadLote >= 2 marks a lote; ParentFolio is set when
	// the first record was already persisted synchronously (fictitious case).
	CantidadLote int             `json:"cantidad_lote,omitempty"`
	MontoLote    decimal.Decimal `json:"monto_lote,omitempty"`
	ParentFolio  string          `json:"parent_folio,omitempty"`
}

// AlertMailer sends out-of-band notifications. *infra.Mailer satisfies it.
type AlertMailer interface {
	Send(to, subject, body, pdfPath string) error
}

// EmisionConfig holds the tunables of the detached pipeline stage.
type EmisionConfig struct {
	MaxConsultas    int           // status poll attempts
	ConsultaDelay   time.Duration // fixed delay between polls
	AlertaMinFolios int64         // low-capacity alert threshold
	AlertaEmail     string
	PDFStoragePath  string
}

// DefaultEmisionConfig mirrors production settings: 5 polls, 1.5s apart.
func DefaultEmisionConfig() EmisionConfig {
	return EmisionConfig{
		MaxConsultas:    5,
		ConsultaDelay:   1500 * time.Millisecond,
		AlertaMinFolios: 10000,
	}
}

// BoletaWorker runs the authority round-trip for each emission job.
type BoletaWorker struct {
	gw        sii.Gateway
	cb        *infra.CircuitBreaker
	repo      repository.BoletaRepository
	cafStore  *caf.Store
	allocator *folio.Allocator
	mailer    AlertMailer
	emails    EmailEnqueuer
	rdb       *redis.Client
	emisor    sii.Emisor
	cfg       EmisionConfig
}

func NewBoletaWorker(
	gw sii.Gateway,
	cb *infra.CircuitBreaker,
	repo repository.BoletaRepository,
	cafStore *caf.Store,
	allocator *folio.Allocator,
	mailer AlertMailer,
	emails EmailEnqueuer,
	rdb *redis.Client,
	emisor sii.Emisor,
	cfg EmisionConfig,
) *BoletaWorker {
	return &BoletaWorker{
		gw:        gw,
		cb:        cb,
		repo:      repo,
		cafStore:  cafStore,
		allocator: allocator,
		mailer:    mailer,
		emails:    emails,
		rdb:       rdb,
		emisor:    emisor,
		cfg:       cfg,
	}
}

// loteInfo carries the batch fields stamped on every record of a lote.
type loteInfo struct {
	parentFolio string
	monto       decimal.Decimal
	cantidad    int
}

func (l *loteInfo) apply(b *model.Boleta) {
	if l == nil {
		return
	}
	pf := l.parentFolio
	m := l.monto
	c := l.cantidad
	b.FolioLote = &pf
	b.MontoLote = &m
	b.CantidadLote = &c
}

// Process handles one emission job. It never returns an error: failures are
// converted into persisted fallback records or DLQ entries.
func (w *BoletaWorker) Process(ctx context.Context, raw json.RawMessage) {
	var p BoletaJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error().Err(err).Msg("boleta_worker: invalid payload")
		return
	}

	if p.CantidadLote < 2 {
		w.emitirUna(ctx, p.Folio, p.CAFRuta, p.Producto, p.Precio, p.FoliosRestantes, nil)
		return
	}

	// Batch. Folio 0 means the service already persisted the first record
	// (fictitious short-circuit); otherwise the first item uses the folio
	// assigned before the ack.
	lote := &loteInfo{parentFolio: p.ParentFolio, monto: p.MontoLote, cantidad: p.CantidadLote}
	restantes := p.CantidadLote - 1
	if p.Folio != 0 {
		guardado := w.emitirUna(ctx, p.Folio, p.CAFRuta, p.Producto, p.Precio, p.FoliosRestantes, lote)
		if lote.parentFolio == "" {
			lote.parentFolio = guardado
		}
	}

	// Remaining items re-allocate sequentially: each insert advances the
	// persisted maximum the next allocation reads.
	for i := 0; i < restantes; i++ {
		ultimo, err := w.repo.UltimoFolio(ctx)
		if err != nil {
			log.Error().Err(err).Msg("boleta_worker: lote: leer ultimo folio")
			w.registrarFicticiaError(ctx, p.Producto, p.Precio, lote)
			continue
		}
		asg, err := w.allocator.Asignar(ultimo)
		if err != nil || asg.Folio == nil {
			w.registrarFicticia(ctx, p.Producto, p.Precio, lote)
			continue
		}
		metrics.FoliosRestantes.Set(float64(asg.FoliosRestantes))
		w.emitirUna(ctx, *asg.Folio, asg.Rango.Ruta, p.Producto, p.Precio, asg.FoliosRestantes, lote)
	}
}

// emitirUna runs the full authority round-trip for one folio and persists the
// outcome. Returns the folio string as stored (possibly renumbered), or the
// fictitious folio used by the fallback.
func (w *BoletaWorker) emitirUna(ctx context.Context, folioNum int64, cafRuta, producto string, precio decimal.Decimal, restantes int64, lote *loteInfo) string {
	bruto := precio.Round(0).IntPart()
	doc := sii.NuevaBoleta(w.emisor, producto, bruto, folioNum, fecha.Hoy())

	var dteXML string
	err := w.cb.Execute(func() error {
		var e error
		dteXML, e = w.gw.GenerarDTE(ctx, doc, cafRuta)
		return e
	})
	if err != nil {
		metrics.ErroresSII.WithLabelValues("generar").Inc()
		log.Error().Err(err).Int64("folio", folioNum).Msg("boleta_worker: generar DTE fallo")
		return w.registrarFicticiaError(ctx, producto, precio, lote)
	}

	res, err := w.cafStore.DatosResolucion(cafRuta)
	if err != nil {
		metrics.ErroresSII.WithLabelValues("resolucion").Inc()
		log.Error().Err(err).Str("caf", cafRuta).Msg("boleta_worker: datos de resolucion ilegibles")
		return w.registrarFicticiaError(ctx, producto, precio, lote)
	}

	var sobreXML string
	err = w.cb.Execute(func() error {
		var e error
		sobreXML, e = w.gw.GenerarSobre(ctx, dteXML, folioNum, *res)
		return e
	})
	if err != nil {
		metrics.ErroresSII.WithLabelValues("sobre").Inc()
		log.Error().Err(err).Int64("folio", folioNum).Msg("boleta_worker: generar sobre fallo")
		return w.registrarFicticiaError(ctx, producto, precio, lote)
	}

	var trackID string
	err = w.cb.Execute(func() error {
		var e error
		trackID, e = w.gw.EnviarSobre(ctx, sobreXML, folioNum)
		return e
	})
	if err != nil {
		metrics.ErroresSII.WithLabelValues("enviar").Inc()
		log.Error().Err(err).Int64("folio", folioNum).Msg("boleta_worker: envio al SII fallo")
		return w.registrarFicticiaError(ctx, producto, precio, lote)
	}

	estado := w.consultarEstado(ctx, trackID)

	// The folio is consumed from the authority's perspective once submitted:
	// no outcome from here on rolls it back or returns it to the pool.
	folioGuardar := strconv.FormatInt(folioNum, 10)
	switch {
	case estado == model.EstadoColisionFolio:
		folioGuardar = folio.Renumerar(folioNum)
		log.Warn().Int64("folio", folioNum).Str("renumerado", folioGuardar).
			Msg("boleta_worker: colision de folio en el SII, registro renumerado")
	case estado == "":
		estado = "DESCONOCIDO"
		log.Warn().Int64("folio", folioNum).Str("track_id", trackID).
			Msg("boleta_worker: sin estado valido tras agotar consultas")
	}

	alerta := w.evaluarAlertaFolios(ctx, restantes)

	xmlB64 := base64.StdEncoding.EncodeToString([]byte(dteXML))
	b := &model.Boleta{
		Folio:     folioGuardar,
		Producto:  producto,
		Precio:    precio,
		Fecha:     fecha.Now(),
		EstadoSII: estado,
		XMLBase64: &xmlB64,
		TrackID:   &trackID,
		Ficticia:  false,
		Alerta:    alerta,
	}
	lote.apply(b)

	if err := w.repo.Create(ctx, b); err != nil {
		log.Error().Err(err).Str("folio", folioGuardar).Msg("boleta_worker: persistir boleta fallo")
		w.aDLQ(ctx, producto, precio, folioGuardar, err)
		return folioGuardar
	}
	metrics.BoletasEmitidas.WithLabelValues(estado).Inc()
	log.Info().Str("folio", folioGuardar).Str("estado", estado).Str("track_id", trackID).
		Msg("boleta_worker: boleta persistida")

	w.generarPDF(b)
	return folioGuardar
}

// consultarEstado polls the SII status endpoint up to MaxConsultas times with
// a fixed delay, returning the first status in the accepted set, the RSC
// collision status, or "" when no recognized status arrived.
func (w *BoletaWorker) consultarEstado(ctx context.Context, trackID string) string {
	for intento := 1; intento <= w.cfg.MaxConsultas; intento++ {
		estado, err := w.gw.ConsultarEstado(ctx, trackID)
		if err != nil {
			metrics.ErroresSII.WithLabelValues("consulta").Inc()
			log.Warn().Err(err).Int("intento", intento).Str("track_id", trackID).
				Msg("boleta_worker: consulta de estado fallo")
		} else {
			if estado == model.EstadoColisionFolio {
				return estado
			}
			for _, ok := range model.EstadosAceptados {
				if estado == ok {
					return estado
				}
			}
			log.Info().Str("estado", estado).Int("intento", intento).Str("track_id", trackID).
				Msg("boleta_worker: estado aun no terminal")
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(w.cfg.ConsultaDelay):
		}
	}
	return ""
}

// registrarFicticia persists a placeholder record when no real folio was
// assignable (mid-lote exhaustion). The business operation survives; the
// counter keeps running.
func (w *BoletaWorker) registrarFicticia(ctx context.Context, producto string, precio decimal.Decimal, lote *loteInfo) string {
	return w.registrarPlaceholder(ctx, producto, precio, model.EstadoFicticia, lote)
}

// registrarFicticiaError persists the fallback record for a gateway failure
// after the client response was already sent.
func (w *BoletaWorker) registrarFicticiaError(ctx context.Context, producto string, precio decimal.Decimal, lote *loteInfo) string {
	return w.registrarPlaceholder(ctx, producto, precio, model.EstadoFicticiaErrorAPI, lote)
}

func (w *BoletaWorker) registrarPlaceholder(ctx context.Context, producto string, precio decimal.Decimal, estado string, lote *loteInfo) string {
	fict, err := folio.GenerarFicticio(ctx, w.repo)
	if err != nil {
		log.Error().Err(err).Msg("boleta_worker: generar folio ficticio fallo")
		w.aDLQ(ctx, producto, precio, "", err)
		return ""
	}
	b := &model.Boleta{
		Folio:     fict,
		Producto:  producto,
		Precio:    precio,
		Fecha:     fecha.Now(),
		EstadoSII: estado,
		Ficticia:  true,
	}
	lote.apply(b)
	if err := w.repo.Create(ctx, b); err != nil {
		log.Error().Err(err).Str("folio", fict).Msg("boleta_worker: persistir ficticia fallo")
		w.aDLQ(ctx, producto, precio, fict, err)
		return fict
	}
	metrics.BoletasFicticias.Inc()
	metrics.BoletasEmitidas.WithLabelValues(estado).Inc()
	log.Warn().Str("folio", fict).Str("estado", estado).Msg("boleta_worker: boleta ficticia persistida")
	return fict
}

func (w *BoletaWorker) aDLQ(ctx context.Context, producto string, precio decimal.Decimal, folioStr string, cause error) {
	payload, _ := json.Marshal(map[string]string{
		"producto": producto,
		"precio":   precio.String(),
		"folio":    folioStr,
	})
	SendToDLQ(ctx, w.rdb, QueueBoletas, "boleta", payload,
		fmt.Sprintf("persistencia fallida: %v", cause), 1)
}

// generarPDF writes the paper copy, best-effort.
func (w *BoletaWorker) generarPDF(b *model.Boleta) {
	if w.cfg.PDFStoragePath == "" {
		return
	}
	if _, err := infra.GenerateBoletaPDF(b, w.emisor.RazonSocial, w.cfg.PDFStoragePath); err != nil {
		log.Warn().Err(err).Str("folio", b.Folio).Msg("boleta_worker: generar PDF fallo")
	}
}
