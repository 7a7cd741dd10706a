package sii

import (
	"github.com/shopspring/decimal"
)

// TipoDTEBoleta is the SII document type for electronic receipts.
const TipoDTEBoleta = 39

// RutSII is the fixed receiver RUT for envelope submissions to the authority.
const RutSII = "60803000-K"

// RutConsumidorFinal is the generic final-consumer receiver.
const RutConsumidorFinal = "66666666-6"

var tasaIVA = decimal.RequireFromString("1.19")

// DesglosarMonto splits a gross amount (what the customer paid, in CLP) into
// net and tax at the fixed 19% rate, rounding the net to the nearest peso.
// neto + iva == bruto always holds.
func DesglosarMonto(bruto int64) (neto, iva int64) {
	neto = decimal.NewFromInt(bruto).Div(tasaIVA).Round(0).IntPart()
	iva = bruto - neto
	return neto, iva
}

// Emisor identifies the issuing company on every DTE.
type Emisor struct {
	RutCompleto string
	RazonSocial string
	Giro        string
	Direccion   string
	Comuna      string
}

// Documento is the DTE body sent to the /dte/generar endpoint.
type Documento struct {
	Encabezado Encabezado `json:"Encabezado"`
	Detalles   []Detalle  `json:"Detalles"`
}

type Encabezado struct {
	IdentificacionDTE IdentificacionDTE `json:"IdentificacionDTE"`
	Emisor            EmisorDTE         `json:"Emisor"`
	Receptor          Receptor          `json:"Receptor"`
	Totales           Totales           `json:"Totales"`
}

type IdentificacionDTE struct {
	TipoDTE           int    `json:"TipoDTE"`
	Folio             int64  `json:"Folio"`
	FechaEmision      string `json:"FechaEmision"`
	IndicadorServicio int    `json:"IndicadorServicio"`
}

type EmisorDTE struct {
	Rut               string `json:"Rut"`
	RazonSocialBoleta string `json:"RazonSocialBoleta"`
	GiroBoleta        string `json:"GiroBoleta"`
	DireccionOrigen   string `json:"DireccionOrigen"`
	ComunaOrigen      string `json:"ComunaOrigen"`
}

type Receptor struct {
	Rut         string `json:"Rut"`
	RazonSocial string `json:"RazonSocial"`
	Direccion   string `json:"Direccion"`
	Comuna      string `json:"Comuna"`
}

type Totales struct {
	MontoNeto   int64 `json:"MontoNeto"`
	IVA         int64 `json:"IVA"`
	MontoTotal  int64 `json:"MontoTotal"`
	MontoExento int64 `json:"MontoExento"`
}

type Detalle struct {
	IndicadorExento int    `json:"IndicadorExento"`
	Nombre          string `json:"Nombre"`
	Cantidad        int    `json:"Cantidad"`
	Precio          int64  `json:"Precio"`
	MontoItem       int64  `json:"MontoItem"`
}

// NuevaBoleta builds the DTE body for a single product sold at a gross price.
// The price is decomposed into net + IVA; the detail line carries the gross.
func NuevaBoleta(emisor Emisor, producto string, bruto int64, folio int64, fechaEmision string) Documento {
	neto, iva := DesglosarMonto(bruto)
	return Documento{
		Encabezado: Encabezado{
			IdentificacionDTE: IdentificacionDTE{
				TipoDTE:           TipoDTEBoleta,
				Folio:             folio,
				FechaEmision:      fechaEmision,
				IndicadorServicio: 3,
			},
			Emisor: EmisorDTE{
				Rut:               emisor.RutCompleto,
				RazonSocialBoleta: emisor.RazonSocial,
				GiroBoleta:        emisor.Giro,
				DireccionOrigen:   emisor.Direccion,
				ComunaOrigen:      emisor.Comuna,
			},
			Receptor: Receptor{
				Rut:         RutConsumidorFinal,
				RazonSocial: "Consumidor final",
				Direccion:   "Sin dirección",
				Comuna:      "Santiago",
			},
			Totales: Totales{
				MontoNeto:   neto,
				IVA:         iva,
				MontoTotal:  bruto,
				MontoExento: 0,
			},
		},
		Detalles: []Detalle{
			{
				IndicadorExento: 0,
				Nombre:          producto,
				Cantidad:        1,
				Precio:          bruto,
				MontoItem:       bruto,
			},
		},
	}
}
