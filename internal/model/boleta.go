package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados SII con los que se persiste una boleta.
// ACE/EPR/REC/SOK/DOK son estados de aceptación del SII; RSC indica colisión
// de folio en el lado de la autoridad.
const (
	EstadoFicticia         = "FICTICIA"
	EstadoFicticiaErrorAPI = "FICTICIA_ERROR_API"
	EstadoColisionFolio    = "RSC"
)

// EstadosAceptados is the terminal-success set when polling the SII.
var EstadosAceptados = []string{"ACE", "EPR", "REC", "SOK", "DOK"}

// Boleta is the durable record of every emitted or attempted receipt.
// Records are never mutated after insert: the status is frozen at insertion
// and corrections happen via a new record (e.g. the "-suffix" renumbering
// applied when the SII reports a folio collision).
//
// Folio is stored as a string: plain numeric for real folios, compound
// "NNN-NNNN" for fictitious ones, "folio-suffix" for RSC-renumbered ones.
type Boleta struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Folio     string          `gorm:"type:varchar(30);not null;index"`
	Producto  string          `gorm:"not null"`
	Precio    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Fecha is civil time in America/Santiago at emission.
	Fecha     time.Time `gorm:"not null"`
	EstadoSII string    `gorm:"type:varchar(30);not null;column:estado_sii"`
	// XMLBase64 holds the generated DTE, base64-encoded. Nil for fictitious records.
	XMLBase64 *string `gorm:"type:text;column:xml_base64"`
	TrackID   *string `gorm:"type:varchar(40);column:track_id"`
	Ficticia  bool    `gorm:"not null;default:false"`
	// Alerta records whether the low-folio alert latch was set when this
	// boleta was persisted. The next emission reads it to decide whether a
	// new depletion episode started.
	Alerta bool `gorm:"not null;default:false"`

	// Batch emission fields, set on every record of a lote. FolioLote is the
	// folio of the first boleta of the batch (the parent).
	FolioLote    *string          `gorm:"type:varchar(30);column:folio_lote"`
	MontoLote    *decimal.Decimal `gorm:"type:decimal(12,2);column:monto_lote"`
	CantidadLote *int             `gorm:"column:cantidad_lote"`

	CreatedAt time.Time
}

func (Boleta) TableName() string { return "boletas" }
