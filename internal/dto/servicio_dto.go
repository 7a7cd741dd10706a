package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearServicioRequest struct {
	Nombre string          `json:"nombre" validate:"required,min=2,max=100"`
	Precio decimal.Decimal `json:"precio" validate:"required"`
}

type ActualizarServicioRequest struct {
	Nombre string           `json:"nombre" validate:"omitempty,min=2,max=100"`
	Precio *decimal.Decimal `json:"precio"`
	Activo *bool            `json:"activo"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ServicioResponse struct {
	ID     string          `json:"id"`
	Nombre string          `json:"nombre"`
	Precio decimal.Decimal `json:"precio"`
	Activo bool            `json:"activo"`
}
