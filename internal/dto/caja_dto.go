package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	NumeroCaja   int             `json:"numero_caja"   validate:"required,min=1"`
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type CerrarCajaRequest struct {
	MontoCierre decimal.Decimal `json:"monto_cierre" validate:"min=0"`
	Observacion *string         `json:"observacion"`
}

type CrearMovimientoRequest struct {
	AperturaCierreID string          `json:"apertura_cierre_id" validate:"required,uuid"`
	ServicioID       string          `json:"servicio_id"        validate:"required,uuid"`
	MedioPago        string          `json:"medio_pago"         validate:"required,oneof=efectivo tarjeta"`
	Monto            decimal.Decimal `json:"monto"              validate:"required,gt=0"`
	// BoletaFolio links the movement to the receipt emitted for it.
	BoletaFolio *string `json:"boleta_folio"`
}

// MovimientoFilter is bound from the query string of GET /api/movimientos.
type MovimientoFilter struct {
	AperturaCierreID string `form:"apertura_cierre_id" validate:"omitempty,uuid"`
	Fecha            string `form:"fecha"` // YYYY-MM-DD
	Page             int    `form:"page,default=1"   validate:"min=1"`
	Limit            int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoResponse struct {
	ID          string          `json:"id"`
	ServicioID  string          `json:"servicio_id"`
	UsuarioID   string          `json:"usuario_id"`
	NumeroCaja  int             `json:"numero_caja"`
	MedioPago   string          `json:"medio_pago"`
	Monto       decimal.Decimal `json:"monto"`
	BoletaFolio *string         `json:"boleta_folio"`
	CreatedAt   string          `json:"created_at"`
}

type AperturaCierreResponse struct {
	ID           string           `json:"id"`
	NumeroCaja   int              `json:"numero_caja"`
	UsuarioID    string           `json:"usuario_id"`
	MontoInicial decimal.Decimal  `json:"monto_inicial"`
	MontoCierre  *decimal.Decimal `json:"monto_cierre"`
	Estado       string           `json:"estado"`
	Observacion  *string          `json:"observacion"`
	AbiertaEn    string           `json:"abierta_en"`
	CerradaEn    *string          `json:"cerrada_en"`
	// TotalMovimientos is the ledger sum for the shift, computed on close/read.
	TotalMovimientos decimal.Decimal `json:"total_movimientos"`
}
