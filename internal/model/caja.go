package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AperturaCierre represents the lifecycle of a cash register shift at the
// terminal (bathrooms/showers). Estado: "abierta" | "cerrada".
type AperturaCierre struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroCaja   int              `gorm:"not null;index"`
	UsuarioID    uuid.UUID        `gorm:"type:uuid;not null"`
	MontoInicial decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	MontoCierre  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Estado       string           `gorm:"type:varchar(20);not null;default:'abierta'"`
	Observacion  *string
	AbiertaEn    time.Time
	CerradaEn    *time.Time

	Movimientos []Movimiento `gorm:"foreignKey:AperturaCierreID"`
}

func (AperturaCierre) TableName() string { return "aperturas_cierres" }

// Movimiento is an immutable entry in the cash ledger: one service charged at
// the register. Movements are never modified or deleted.
type Movimiento struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AperturaCierreID uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServicioID       uuid.UUID       `gorm:"type:uuid;not null"`
	UsuarioID        uuid.UUID       `gorm:"type:uuid;not null"`
	NumeroCaja       int             `gorm:"not null"`
	MedioPago        string          `gorm:"type:varchar(20);not null"` // efectivo | tarjeta
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// BoletaFolio links the movement to the receipt issued for it, when any.
	BoletaFolio *string `gorm:"type:varchar(30);column:boleta_folio"`
	CreatedAt   time.Time
}

func (Movimiento) TableName() string { return "movimientos" }

// Servicio is a billable item at the site (baño, ducha, etc.).
type Servicio struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre string          `gorm:"not null;uniqueIndex"`
	Precio decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Activo bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Servicio) TableName() string { return "servicios" }
