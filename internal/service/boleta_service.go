package service

// boleta_service.go
// Synchronous stage of the emission pipeline. The response to the register is
// sent as soon as the folio question is settled:
//
//   - a real folio exists → it is reserved for this sale and the SII
//     round-trip is enqueued; the client already holds the final folio.
//   - no real folio (exhaustion or a gap before the next range) → a
//     fictitious record is persisted right here and the sale proceeds with a
//     non-tax receipt. Selling never blocks on the tax authority.

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/fecha"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/metrics"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/sii"
	"github.com/dorian-cesar/backend-banos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrPrecioInvalido  = errors.New("el precio debe ser un monto positivo en pesos")
	ErrCAFNoDisponible = errors.New("el directorio de CAF no esta disponible")
	ErrEncolarEmision  = errors.New("no se pudo encolar la emision")
	ErrGatewayFolios   = errors.New("la solicitud de folios al SII fallo")
	ErrFicticioFallido = errors.New("no se pudo registrar la boleta de contingencia")
)

type BoletaService interface {
	Emitir(ctx context.Context, req dto.EmitirBoletaRequest) (*dto.EmitirBoletaResponse, error)
	EmitirLote(ctx context.Context, req dto.EmitirLoteRequest) (*dto.EmitirLoteResponse, error)
	FoliosRestantes(ctx context.Context) (*dto.FoliosRestantesResponse, error)
	InfoCAF(ctx context.Context) (*dto.InfoCAFResponse, error)
	SolicitarFolios(ctx context.Context, cantidad int) (*dto.SolicitarFoliosResponse, error)
	Listar(ctx context.Context, filter dto.BoletaFilter) (*dto.BoletaListResponse, error)
}

type boletaService struct {
	repo       repository.BoletaRepository
	allocator  *folio.Allocator
	cafStore   *caf.Store
	dispatcher *worker.Dispatcher
	gw         sii.Gateway
	rdb        *redis.Client
	mailer     worker.AlertMailer
	umbral     int64
	alertaMail string
}

func NewBoletaService(
	repo repository.BoletaRepository,
	allocator *folio.Allocator,
	cafStore *caf.Store,
	dispatcher *worker.Dispatcher,
	gw sii.Gateway,
	rdb *redis.Client,
	mailer worker.AlertMailer,
	umbral int64,
	alertaMail string,
) BoletaService {
	return &boletaService{
		repo:       repo,
		allocator:  allocator,
		cafStore:   cafStore,
		dispatcher: dispatcher,
		gw:         gw,
		rdb:        rdb,
		mailer:     mailer,
		umbral:     umbral,
		alertaMail: alertaMail,
	}
}

// asignar reads the persisted maximum and runs one allocation. A store failure
// is degraded to "no folio assignable" so the sale still goes through on a
// fictitious receipt.
func (s *boletaService) asignar(ctx context.Context) (*folio.Asignacion, error) {
	ultimo, err := s.repo.UltimoFolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("leer ultimo folio: %w", err)
	}
	asg, err := s.allocator.Asignar(ultimo)
	if err != nil {
		log.Error().Err(err).Msg("boleta_service: CAF no disponible, se degrada a ficticia")
		return &folio.Asignacion{}, nil
	}
	metrics.FoliosRestantes.Set(float64(asg.FoliosRestantes))
	return asg, nil
}

func (s *boletaService) Emitir(ctx context.Context, req dto.EmitirBoletaRequest) (*dto.EmitirBoletaResponse, error) {
	bruto := req.Precio.Round(0).IntPart()
	if bruto <= 0 {
		return nil, ErrPrecioInvalido
	}

	asg, err := s.asignar(ctx)
	if err != nil {
		return nil, err
	}

	if asg.Folio == nil {
		return s.emitirFicticia(ctx, req.Producto, req.Precio, asg.FoliosRestantes, nil)
	}

	payload := worker.BoletaJobPayload{
		Producto:        req.Producto,
		Precio:          req.Precio,
		Folio:           *asg.Folio,
		CAFRuta:         asg.Rango.Ruta,
		FoliosRestantes: asg.FoliosRestantes,
	}
	if err := s.dispatcher.EnqueueBoleta(ctx, payload); err != nil {
		// The folio was never submitted to the authority, so it is safe to
		// leave it unconsumed and fall back to a contingency record.
		log.Error().Err(err).Int64("folio", *asg.Folio).Msg("boleta_service: encolar emision fallo")
		return s.emitirFicticia(ctx, req.Producto, req.Precio, asg.FoliosRestantes, nil)
	}

	neto, iva := sii.DesglosarMonto(bruto)
	return &dto.EmitirBoletaResponse{
		Folio:           strconv.FormatInt(*asg.Folio, 10),
		Ficticia:        false,
		Producto:        req.Producto,
		Precio:          req.Precio,
		Neto:            neto,
		IVA:             iva,
		FoliosRestantes: asg.FoliosRestantes,
		Fecha:           fecha.Hoy(),
	}, nil
}

func (s *boletaService) EmitirLote(ctx context.Context, req dto.EmitirLoteRequest) (*dto.EmitirLoteResponse, error) {
	bruto := req.Precio.Round(0).IntPart()
	if bruto <= 0 {
		return nil, ErrPrecioInvalido
	}
	montoLote := req.Precio.Mul(decimal.NewFromInt(int64(req.Cantidad)))

	asg, err := s.asignar(ctx)
	if err != nil {
		return nil, err
	}

	payload := worker.BoletaJobPayload{
		Producto:        req.Producto,
		Precio:          req.Precio,
		FoliosRestantes: asg.FoliosRestantes,
		CantidadLote:    req.Cantidad,
		MontoLote:       montoLote,
	}

	var folioLote string
	if asg.Folio != nil {
		folioLote = strconv.FormatInt(*asg.Folio, 10)
		payload.Folio = *asg.Folio
		payload.CAFRuta = asg.Rango.Ruta
		payload.ParentFolio = folioLote
	} else {
		// No real folio for the first item: persist it fictitious right now so
		// the ack carries a real identifier, and let the worker do the rest.
		resp, err := s.emitirFicticia(ctx, req.Producto, req.Precio, asg.FoliosRestantes,
			&loteCampos{monto: montoLote, cantidad: req.Cantidad})
		if err != nil {
			return nil, err
		}
		folioLote = resp.Folio
		payload.ParentFolio = folioLote
	}

	if err := s.dispatcher.EnqueueBoleta(ctx, payload); err != nil {
		log.Error().Err(err).Str("folio_lote", folioLote).Msg("boleta_service: encolar lote fallo")
		return nil, ErrEncolarEmision
	}

	return &dto.EmitirLoteResponse{
		FolioLote:       folioLote,
		Cantidad:        req.Cantidad,
		MontoLote:       montoLote,
		FoliosRestantes: asg.FoliosRestantes,
	}, nil
}

// loteCampos carries the batch columns for a synchronously persisted first record.
type loteCampos struct {
	monto    decimal.Decimal
	cantidad int
}

// emitirFicticia persists the contingency record synchronously and fires the
// cooldown-throttled exhaustion alert. The client gets the fictitious folio in
// the same shape as a real acknowledgment.
func (s *boletaService) emitirFicticia(ctx context.Context, producto string, precio decimal.Decimal, restantes int64, lote *loteCampos) (*dto.EmitirBoletaResponse, error) {
	fict, err := folio.GenerarFicticio(ctx, s.repo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFicticioFallido, err)
	}

	b := &model.Boleta{
		Folio:     fict,
		Producto:  producto,
		Precio:    precio,
		Fecha:     fecha.Now(),
		EstadoSII: model.EstadoFicticia,
		Ficticia:  true,
		Alerta:    s.umbral > 0 && restantes < s.umbral,
	}
	if lote != nil {
		pf := fict
		m := lote.monto
		c := lote.cantidad
		b.FolioLote = &pf
		b.MontoLote = &m
		b.CantidadLote = &c
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFicticioFallido, err)
	}
	metrics.BoletasFicticias.Inc()
	metrics.BoletasEmitidas.WithLabelValues(model.EstadoFicticia).Inc()
	log.Warn().Str("folio", fict).Int64("restantes", restantes).
		Msg("boleta_service: sin folios disponibles, boleta ficticia emitida")

	worker.AlertaAgotamiento(ctx, s.rdb, s.dispatcher, s.mailer, s.alertaMail, restantes)

	bruto := precio.Round(0).IntPart()
	neto, iva := sii.DesglosarMonto(bruto)
	return &dto.EmitirBoletaResponse{
		Folio:           fict,
		Ficticia:        true,
		Producto:        producto,
		Precio:          precio,
		Neto:            neto,
		IVA:             iva,
		FoliosRestantes: restantes,
		Fecha:           fecha.Hoy(),
	}, nil
}

func (s *boletaService) FoliosRestantes(ctx context.Context) (*dto.FoliosRestantesResponse, error) {
	ultimo, err := s.repo.UltimoFolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("leer ultimo folio: %w", err)
	}
	asg, err := s.allocator.Asignar(ultimo)
	if err != nil {
		return nil, ErrCAFNoDisponible
	}
	metrics.FoliosRestantes.Set(float64(asg.FoliosRestantes))

	resp := &dto.FoliosRestantesResponse{
		FoliosRestantes: asg.FoliosRestantes,
		UltimoFolio:     ultimo,
		Alerta:          s.umbral > 0 && asg.FoliosRestantes < s.umbral,
		Umbral:          s.umbral,
	}
	if asg.Folio == nil {
		resp.Mensaje = "sin folio asignable: las ventas se registraran con folios ficticios"
	}
	return resp, nil
}

func (s *boletaService) InfoCAF(ctx context.Context) (*dto.InfoCAFResponse, error) {
	rangos, err := s.cafStore.Rangos()
	if err != nil {
		return nil, ErrCAFNoDisponible
	}
	ultimo, err := s.repo.UltimoFolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("leer ultimo folio: %w", err)
	}
	asg, err := s.allocator.Asignar(ultimo)
	if err != nil {
		return nil, ErrCAFNoDisponible
	}

	resp := &dto.InfoCAFResponse{
		Rangos:          make([]dto.RangoCAFResponse, 0, len(rangos)),
		FoliosRestantes: asg.FoliosRestantes,
		UltimoFolio:     ultimo,
	}
	for _, r := range rangos {
		resp.Rangos = append(resp.Rangos, dto.RangoCAFResponse{
			Archivo: r.Archivo,
			Desde:   r.Desde,
			Hasta:   r.Hasta,
			Total:   r.Total(),
		})
	}
	return resp, nil
}

func (s *boletaService) SolicitarFolios(ctx context.Context, cantidad int) (*dto.SolicitarFoliosResponse, error) {
	contenido, err := s.gw.SolicitarFolios(ctx, int64(cantidad))
	if err != nil {
		log.Error().Err(err).Int("cantidad", cantidad).Msg("boleta_service: solicitar folios fallo")
		return nil, ErrGatewayFolios
	}
	ruta, err := s.cafStore.Guardar(contenido)
	if err != nil {
		return nil, fmt.Errorf("guardar CAF: %w", err)
	}
	log.Info().Str("archivo", ruta).Int("cantidad", cantidad).Msg("boleta_service: nuevo CAF almacenado")
	return &dto.SolicitarFoliosResponse{
		Archivo:  filepath.Base(ruta),
		Cantidad: cantidad,
	}, nil
}

func (s *boletaService) Listar(ctx context.Context, filter dto.BoletaFilter) (*dto.BoletaListResponse, error) {
	boletas, total, err := s.repo.List(ctx, filter.Fecha, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.BoletaListItem, 0, len(boletas))
	for i := range boletas {
		b := &boletas[i]
		items = append(items, dto.BoletaListItem{
			ID:           b.ID.String(),
			Folio:        b.Folio,
			Producto:     b.Producto,
			Precio:       b.Precio,
			Fecha:        b.Fecha.Format("2006-01-02 15:04:05"),
			EstadoSII:    b.EstadoSII,
			TrackID:      b.TrackID,
			Ficticia:     b.Ficticia,
			Alerta:       b.Alerta,
			FolioLote:    b.FolioLote,
			CantidadLote: b.CantidadLote,
		})
	}
	return &dto.BoletaListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}
