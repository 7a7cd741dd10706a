package service

// caja_service.go
// Shift lifecycle and the append-only cash ledger. One open shift per register
// at a time; movements always hang off the open shift of the operator.

import (
	"context"
	"errors"
	"fmt"

	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/fecha"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrCajaYaAbierta  = errors.New("la caja ya tiene una apertura activa")
	ErrCajaNoAbierta  = errors.New("la apertura no existe o ya esta cerrada")
	ErrServicioNoDisp = errors.New("el servicio no existe o esta inactivo")
)

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaCierreResponse, error)
	Cerrar(ctx context.Context, aperturaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.AperturaCierreResponse, error)
	ListarAperturas(ctx context.Context, page, limit int) ([]dto.AperturaCierreResponse, int64, error)

	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.CrearMovimientoRequest) (*dto.MovimientoResponse, error)
	ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) ([]dto.MovimientoResponse, int64, error)
}

type cajaService struct {
	repo         repository.CajaRepository
	servicioRepo repository.ServicioRepository
}

func NewCajaService(repo repository.CajaRepository, servicioRepo repository.ServicioRepository) CajaService {
	return &cajaService{repo: repo, servicioRepo: servicioRepo}
}

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaCierreResponse, error) {
	activa, err := s.repo.AperturaActiva(ctx, req.NumeroCaja)
	if err != nil {
		return nil, err
	}
	if activa != nil {
		return nil, ErrCajaYaAbierta
	}

	a := &model.AperturaCierre{
		NumeroCaja:   req.NumeroCaja,
		UsuarioID:    usuarioID,
		MontoInicial: req.MontoInicial,
		Estado:       "abierta",
		AbiertaEn:    fecha.Now(),
	}
	if err := s.repo.CrearApertura(ctx, a); err != nil {
		return nil, err
	}
	resp := aperturaToResponse(a)
	return &resp, nil
}

func (s *cajaService) Cerrar(ctx context.Context, aperturaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.AperturaCierreResponse, error) {
	a, err := s.repo.FindAperturaByID(ctx, aperturaID)
	if err != nil || a.Estado != "abierta" {
		return nil, ErrCajaNoAbierta
	}

	ahora := fecha.Now()
	monto := req.MontoCierre
	a.MontoCierre = &monto
	a.Estado = "cerrada"
	a.CerradaEn = &ahora
	a.Observacion = req.Observacion
	if err := s.repo.UpdateApertura(ctx, a); err != nil {
		return nil, err
	}
	resp := aperturaToResponse(a)
	return &resp, nil
}

func (s *cajaService) ListarAperturas(ctx context.Context, page, limit int) ([]dto.AperturaCierreResponse, int64, error) {
	items, total, err := s.repo.ListAperturas(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.AperturaCierreResponse, len(items))
	for i := range items {
		resp[i] = aperturaToResponse(&items[i])
	}
	return resp, total, nil
}

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.CrearMovimientoRequest) (*dto.MovimientoResponse, error) {
	aperturaID, err := uuid.Parse(req.AperturaCierreID)
	if err != nil {
		return nil, fmt.Errorf("apertura_cierre_id invalido: %w", err)
	}
	servicioID, err := uuid.Parse(req.ServicioID)
	if err != nil {
		return nil, fmt.Errorf("servicio_id invalido: %w", err)
	}

	a, err := s.repo.FindAperturaByID(ctx, aperturaID)
	if err != nil || a.Estado != "abierta" {
		return nil, ErrCajaNoAbierta
	}
	svc, err := s.servicioRepo.FindByID(ctx, servicioID)
	if err != nil || !svc.Activo {
		return nil, ErrServicioNoDisp
	}

	m := &model.Movimiento{
		AperturaCierreID: aperturaID,
		ServicioID:       servicioID,
		UsuarioID:        usuarioID,
		NumeroCaja:       a.NumeroCaja,
		MedioPago:        req.MedioPago,
		Monto:            req.Monto,
		BoletaFolio:      req.BoletaFolio,
	}
	if err := s.repo.CrearMovimiento(ctx, m); err != nil {
		return nil, err
	}
	resp := movimientoToResponse(m)
	return &resp, nil
}

func (s *cajaService) ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) ([]dto.MovimientoResponse, int64, error) {
	var aperturaID *uuid.UUID
	if filter.AperturaCierreID != "" {
		id, err := uuid.Parse(filter.AperturaCierreID)
		if err != nil {
			return nil, 0, fmt.Errorf("apertura_cierre_id invalido: %w", err)
		}
		aperturaID = &id
	}
	items, total, err := s.repo.ListMovimientos(ctx, aperturaID, filter.Fecha, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.MovimientoResponse, len(items))
	for i := range items {
		resp[i] = movimientoToResponse(&items[i])
	}
	return resp, total, nil
}

func aperturaToResponse(a *model.AperturaCierre) dto.AperturaCierreResponse {
	total := decimal.Zero
	for i := range a.Movimientos {
		total = total.Add(a.Movimientos[i].Monto)
	}
	resp := dto.AperturaCierreResponse{
		ID:               a.ID.String(),
		NumeroCaja:       a.NumeroCaja,
		UsuarioID:        a.UsuarioID.String(),
		MontoInicial:     a.MontoInicial,
		MontoCierre:      a.MontoCierre,
		Estado:           a.Estado,
		Observacion:      a.Observacion,
		AbiertaEn:        a.AbiertaEn.Format("2006-01-02 15:04:05"),
		TotalMovimientos: total,
	}
	if a.CerradaEn != nil {
		s := a.CerradaEn.Format("2006-01-02 15:04:05")
		resp.CerradaEn = &s
	}
	return resp
}

func movimientoToResponse(m *model.Movimiento) dto.MovimientoResponse {
	return dto.MovimientoResponse{
		ID:          m.ID.String(),
		ServicioID:  m.ServicioID.String(),
		UsuarioID:   m.UsuarioID.String(),
		NumeroCaja:  m.NumeroCaja,
		MedioPago:   m.MedioPago,
		Monto:       m.Monto,
		BoletaFolio: m.BoletaFolio,
		CreatedAt:   m.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
