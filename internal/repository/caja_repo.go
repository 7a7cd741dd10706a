package repository

import (
	"context"
	"errors"

	"github.com/dorian-cesar/backend-banos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CajaRepository manages cash-register shifts (aperturas/cierres) and their
// append-only movement ledger.
type CajaRepository interface {
	CrearApertura(ctx context.Context, a *model.AperturaCierre) error
	FindAperturaByID(ctx context.Context, id uuid.UUID) (*model.AperturaCierre, error)
	// AperturaActiva returns the open shift for a register, or nil.
	AperturaActiva(ctx context.Context, numeroCaja int) (*model.AperturaCierre, error)
	UpdateApertura(ctx context.Context, a *model.AperturaCierre) error
	ListAperturas(ctx context.Context, page, limit int) ([]model.AperturaCierre, int64, error)

	CrearMovimiento(ctx context.Context, m *model.Movimiento) error
	// ListMovimientos filters by shift and/or day (fecha YYYY-MM-DD, empty = all).
	ListMovimientos(ctx context.Context, aperturaID *uuid.UUID, fecha string, page, limit int) ([]model.Movimiento, int64, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository {
	return &cajaRepo{db: db}
}

func (r *cajaRepo) CrearApertura(ctx context.Context, a *model.AperturaCierre) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *cajaRepo) FindAperturaByID(ctx context.Context, id uuid.UUID) (*model.AperturaCierre, error) {
	var a model.AperturaCierre
	err := r.db.WithContext(ctx).Preload("Movimientos").First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *cajaRepo) AperturaActiva(ctx context.Context, numeroCaja int) (*model.AperturaCierre, error) {
	var a model.AperturaCierre
	err := r.db.WithContext(ctx).
		Where("numero_caja = ? AND estado = 'abierta'", numeroCaja).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *cajaRepo) UpdateApertura(ctx context.Context, a *model.AperturaCierre) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *cajaRepo) ListAperturas(ctx context.Context, page, limit int) ([]model.AperturaCierre, int64, error) {
	var items []model.AperturaCierre
	var total int64
	q := r.db.WithContext(ctx).Model(&model.AperturaCierre{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("abierta_en DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error
	return items, total, err
}

func (r *cajaRepo) CrearMovimiento(ctx context.Context, m *model.Movimiento) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, aperturaID *uuid.UUID, fecha string, page, limit int) ([]model.Movimiento, int64, error) {
	var items []model.Movimiento
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Movimiento{})
	if aperturaID != nil {
		q = q.Where("apertura_cierre_id = ?", *aperturaID)
	}
	if fecha != "" {
		q = q.Where("DATE(created_at) = ?", fecha)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&items).Error
	return items, total, err
}
