package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// EmitirBoletaRequest is the body of POST /api/boletas/enviar.
type EmitirBoletaRequest struct {
	Producto string          `json:"producto" validate:"required,min=2,max=120"`
	Precio   decimal.Decimal `json:"precio"   validate:"required"`
}

// EmitirLoteRequest is the body of POST /api/boletas/enviar-lote: N receipts
// for the same product/price emitted as one batch.
type EmitirLoteRequest struct {
	Producto string          `json:"producto" validate:"required,min=2,max=120"`
	Precio   decimal.Decimal `json:"precio"   validate:"required"`
	Cantidad int             `json:"cantidad" validate:"required,min=2,max=100"`
}

// SolicitarFoliosRequest is the body of POST /api/boletas/solicitar-folios.
type SolicitarFoliosRequest struct {
	Cantidad int `json:"cantidad" validate:"required,min=1,max=100000"`
}

// BoletaFilter is bound from the query string of GET /api/boletas.
type BoletaFilter struct {
	Fecha string `form:"fecha"` // YYYY-MM-DD; empty = all
	Page  int    `form:"page,default=1"   validate:"min=1"`
	Limit int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// EmitirBoletaResponse is the early acknowledgment: the folio is final, the
// SII round-trip continues in background.
type EmitirBoletaResponse struct {
	Folio           string          `json:"folio"`
	Ficticia        bool            `json:"ficticia"`
	Producto        string          `json:"producto"`
	Precio          decimal.Decimal `json:"precio"`
	Neto            int64           `json:"neto"`
	IVA             int64           `json:"iva"`
	FoliosRestantes int64           `json:"folios_restantes"`
	Fecha           string          `json:"fecha"`
}

// EmitirLoteResponse acknowledges a batch with the first folio assigned.
type EmitirLoteResponse struct {
	FolioLote       string          `json:"folio_lote"`
	Cantidad        int             `json:"cantidad"`
	MontoLote       decimal.Decimal `json:"monto_lote"`
	FoliosRestantes int64           `json:"folios_restantes"`
}

type BoletaListItem struct {
	ID           string          `json:"id"`
	Folio        string          `json:"folio"`
	Producto     string          `json:"producto"`
	Precio       decimal.Decimal `json:"precio"`
	Fecha        string          `json:"fecha"`
	EstadoSII    string          `json:"estado_sii"`
	TrackID      *string         `json:"track_id"`
	Ficticia     bool            `json:"ficticia"`
	Alerta       bool            `json:"alerta"`
	FolioLote    *string         `json:"folio_lote,omitempty"`
	CantidadLote *int            `json:"cantidad_lote,omitempty"`
}

type BoletaListResponse struct {
	Data  []BoletaListItem `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// FoliosRestantesResponse reports remaining capacity across loaded CAF ranges.
type FoliosRestantesResponse struct {
	FoliosRestantes int64  `json:"folios_restantes"`
	UltimoFolio     int64  `json:"ultimo_folio"`
	Alerta          bool   `json:"alerta"`
	Umbral          int64  `json:"umbral"`
	Mensaje         string `json:"mensaje,omitempty"`
}

// RangoCAFResponse describes one loaded CAF file for GET /api/boletas/info-caf.
type RangoCAFResponse struct {
	Archivo string `json:"archivo"`
	Desde   int64  `json:"desde"`
	Hasta   int64  `json:"hasta"`
	Total   int64  `json:"total"`
}

type InfoCAFResponse struct {
	Rangos          []RangoCAFResponse `json:"rangos"`
	FoliosRestantes int64              `json:"folios_restantes"`
	UltimoFolio     int64              `json:"ultimo_folio"`
}

// SolicitarFoliosResponse confirms a CAF downloaded from the authority and
// stored in the CAF directory.
type SolicitarFoliosResponse struct {
	Archivo  string `json:"archivo"`
	Cantidad int    `json:"cantidad"`
}
