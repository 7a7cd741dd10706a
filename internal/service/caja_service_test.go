package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory CajaRepository stub ────────────────────────────────────────────

type memCajaRepo struct {
	aperturas   map[uuid.UUID]*model.AperturaCierre
	movimientos []model.Movimiento
}

func newMemCajaRepo() *memCajaRepo {
	return &memCajaRepo{aperturas: make(map[uuid.UUID]*model.AperturaCierre)}
}

func (r *memCajaRepo) CrearApertura(_ context.Context, a *model.AperturaCierre) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.aperturas[a.ID] = &cp
	return nil
}

func (r *memCajaRepo) FindAperturaByID(_ context.Context, id uuid.UUID) (*model.AperturaCierre, error) {
	a, ok := r.aperturas[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *a
	return &cp, nil
}

func (r *memCajaRepo) AperturaActiva(_ context.Context, numeroCaja int) (*model.AperturaCierre, error) {
	for _, a := range r.aperturas {
		if a.NumeroCaja == numeroCaja && a.Estado == "abierta" {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCajaRepo) UpdateApertura(_ context.Context, a *model.AperturaCierre) error {
	cp := *a
	r.aperturas[a.ID] = &cp
	return nil
}

func (r *memCajaRepo) ListAperturas(_ context.Context, _, _ int) ([]model.AperturaCierre, int64, error) {
	var out []model.AperturaCierre
	for _, a := range r.aperturas {
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (r *memCajaRepo) CrearMovimiento(_ context.Context, m *model.Movimiento) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.movimientos = append(r.movimientos, *m)
	return nil
}

// ListMovimientos applies the same predicates the SQL does: shift match and
// calendar-day match on created_at.
func (r *memCajaRepo) ListMovimientos(_ context.Context, aperturaID *uuid.UUID, fecha string, _, _ int) ([]model.Movimiento, int64, error) {
	var out []model.Movimiento
	for i := range r.movimientos {
		m := r.movimientos[i]
		if aperturaID != nil && m.AperturaCierreID != *aperturaID {
			continue
		}
		if fecha != "" && m.CreatedAt.Format("2006-01-02") != fecha {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

var _ repository.CajaRepository = (*memCajaRepo)(nil)

// ── ServicioRepository stub ──────────────────────────────────────────────────

type memServicioRepo struct {
	servicios map[uuid.UUID]*model.Servicio
}

func newMemServicioRepo() *memServicioRepo {
	return &memServicioRepo{servicios: make(map[uuid.UUID]*model.Servicio)}
}

func (r *memServicioRepo) Create(_ context.Context, s *model.Servicio) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.servicios[s.ID] = &cp
	return nil
}

func (r *memServicioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Servicio, error) {
	s, ok := r.servicios[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *s
	return &cp, nil
}

func (r *memServicioRepo) List(_ context.Context, _ bool) ([]model.Servicio, error) {
	var out []model.Servicio
	for _, s := range r.servicios {
		out = append(out, *s)
	}
	return out, nil
}

func (r *memServicioRepo) Update(_ context.Context, s *model.Servicio) error {
	cp := *s
	r.servicios[s.ID] = &cp
	return nil
}

var _ repository.ServicioRepository = (*memServicioRepo)(nil)

// ── Helpers ──────────────────────────────────────────────────────────────────

func abrirCaja(t *testing.T, svc CajaService, numeroCaja int) uuid.UUID {
	t.Helper()
	resp, err := svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		NumeroCaja:   numeroCaja,
		MontoInicial: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func sembrarMovimiento(r *memCajaRepo, aperturaID uuid.UUID, dia time.Time, monto int64) {
	r.movimientos = append(r.movimientos, model.Movimiento{
		ID:               uuid.New(),
		AperturaCierreID: aperturaID,
		ServicioID:       uuid.New(),
		UsuarioID:        uuid.New(),
		NumeroCaja:       1,
		MedioPago:        "efectivo",
		Monto:            decimal.NewFromInt(monto),
		CreatedAt:        dia,
	})
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAbrirCajaYaAbierta(t *testing.T) {
	repo := newMemCajaRepo()
	svc := NewCajaService(repo, newMemServicioRepo())
	abrirCaja(t, svc, 1)

	_, err := svc.Abrir(context.Background(), uuid.New(), dto.AbrirCajaRequest{
		NumeroCaja:   1,
		MontoInicial: decimal.NewFromInt(5000),
	})
	assert.ErrorIs(t, err, ErrCajaYaAbierta)
}

func TestCerrarCaja(t *testing.T) {
	repo := newMemCajaRepo()
	svc := NewCajaService(repo, newMemServicioRepo())
	id := abrirCaja(t, svc, 1)

	obs := "sin novedades"
	resp, err := svc.Cerrar(context.Background(), id, dto.CerrarCajaRequest{
		MontoCierre: decimal.NewFromInt(42000),
		Observacion: &obs,
	})
	require.NoError(t, err)
	assert.Equal(t, "cerrada", resp.Estado)
	require.NotNil(t, resp.MontoCierre)
	assert.True(t, resp.MontoCierre.Equal(decimal.NewFromInt(42000)))
	assert.NotNil(t, resp.CerradaEn)

	// A closed shift rejects further operations.
	_, err = svc.Cerrar(context.Background(), id, dto.CerrarCajaRequest{MontoCierre: decimal.Zero})
	assert.ErrorIs(t, err, ErrCajaNoAbierta)
}

func TestRegistrarMovimientoServicioInactivo(t *testing.T) {
	repo := newMemCajaRepo()
	servicios := newMemServicioRepo()
	svc := NewCajaService(repo, servicios)
	aperturaID := abrirCaja(t, svc, 1)

	inactivo := &model.Servicio{Nombre: "DUCHA", Precio: decimal.NewFromInt(3000), Activo: false}
	require.NoError(t, servicios.Create(context.Background(), inactivo))

	_, err := svc.RegistrarMovimiento(context.Background(), uuid.New(), dto.CrearMovimientoRequest{
		AperturaCierreID: aperturaID.String(),
		ServicioID:       inactivo.ID.String(),
		MedioPago:        "efectivo",
		Monto:            decimal.NewFromInt(3000),
	})
	assert.ErrorIs(t, err, ErrServicioNoDisp)
	assert.Empty(t, repo.movimientos)
}

func TestListarMovimientosFiltraPorFecha(t *testing.T) {
	repo := newMemCajaRepo()
	svc := NewCajaService(repo, newMemServicioRepo())
	aperturaID := abrirCaja(t, svc, 1)

	hoy := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	ayer := hoy.AddDate(0, 0, -1)
	sembrarMovimiento(repo, aperturaID, hoy, 500)
	sembrarMovimiento(repo, aperturaID, hoy, 800)
	sembrarMovimiento(repo, aperturaID, ayer, 500)

	items, total, err := svc.ListarMovimientos(context.Background(), dto.MovimientoFilter{
		Fecha: "2026-08-27",
		Page:  1,
		Limit: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	for _, m := range items {
		assert.Equal(t, "2026-08-27", m.CreatedAt[:10])
	}
}

func TestListarMovimientosFiltraPorApertura(t *testing.T) {
	repo := newMemCajaRepo()
	svc := NewCajaService(repo, newMemServicioRepo())
	apertura1 := abrirCaja(t, svc, 1)
	apertura2 := abrirCaja(t, svc, 2)

	dia := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	sembrarMovimiento(repo, apertura1, dia, 500)
	sembrarMovimiento(repo, apertura2, dia, 800)

	items, total, err := svc.ListarMovimientos(context.Background(), dto.MovimientoFilter{
		AperturaCierreID: apertura1.String(),
		Page:             1,
		Limit:            50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.True(t, items[0].Monto.Equal(decimal.NewFromInt(500)))
}

func TestListarMovimientosAperturaInvalida(t *testing.T) {
	svc := NewCajaService(newMemCajaRepo(), newMemServicioRepo())

	_, _, err := svc.ListarMovimientos(context.Background(), dto.MovimientoFilter{
		AperturaCierreID: "no-es-uuid",
		Page:             1,
		Limit:            50,
	})
	assert.Error(t, err)
}
