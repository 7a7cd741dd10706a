package repository

import (
	"context"
	"errors"

	"github.com/dorian-cesar/backend-banos/internal/model"

	"gorm.io/gorm"
)

// BoletaRepository persists emission records. The store is the single source
// of truth for folio sequencing: UltimoFolio is read before every allocation,
// with no transaction spanning allocation + emission + persist.
type BoletaRepository interface {
	Create(ctx context.Context, b *model.Boleta) error
	// UltimoFolio returns the maximum numeric folio among non-fictitious,
	// non-renumbered records, or 0 when there is none.
	UltimoFolio(ctx context.Context) (int64, error)
	ExisteFolio(ctx context.Context, folio string) (bool, error)
	// Ultima returns the most recently persisted boleta (for the alert
	// latch), or nil when the table is empty.
	Ultima(ctx context.Context) (*model.Boleta, error)
	// List pages the emission history, optionally filtered by civil date
	// (YYYY-MM-DD), newest first.
	List(ctx context.Context, fecha string, page, limit int) ([]model.Boleta, int64, error)
}

type boletaRepo struct{ db *gorm.DB }

func NewBoletaRepository(db *gorm.DB) BoletaRepository {
	return &boletaRepo{db: db}
}

func (r *boletaRepo) Create(ctx context.Context, b *model.Boleta) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// UltimoFolio ignores fictitious records, RSC-renumbered records and any folio
// that is not purely numeric (compound "id-suffix" strings), so a fictitious
// or renumbered entry can never advance the sequence.
func (r *boletaRepo) UltimoFolio(ctx context.Context) (int64, error) {
	var ultimo int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(MAX(folio::bigint), 0)
		FROM boletas
		WHERE ficticia = false
		  AND estado_sii <> ?
		  AND folio ~ '^[0-9]+$'
	`, model.EstadoColisionFolio).Scan(&ultimo).Error
	return ultimo, err
}

func (r *boletaRepo) ExisteFolio(ctx context.Context, folio string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Boleta{}).
		Where("folio = ?", folio).Count(&count).Error
	return count > 0, err
}

func (r *boletaRepo) Ultima(ctx context.Context) (*model.Boleta, error) {
	var b model.Boleta
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *boletaRepo) List(ctx context.Context, fecha string, page, limit int) ([]model.Boleta, int64, error) {
	var boletas []model.Boleta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Boleta{})
	if fecha != "" {
		q = q.Where("DATE(fecha) = ?", fecha)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&boletas).Error
	return boletas, total, err
}
