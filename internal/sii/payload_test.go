package sii

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesglosarMonto(t *testing.T) {
	casos := []struct {
		bruto int64
		neto  int64
		iva   int64
	}{
		{1000, 840, 160},
		{11900, 10000, 1900},
		{50000, 42017, 7983},
	}
	for _, c := range casos {
		neto, iva := DesglosarMonto(c.bruto)
		assert.Equal(t, c.neto, neto, "neto de %d", c.bruto)
		assert.Equal(t, c.iva, iva, "iva de %d", c.bruto)
		assert.Equal(t, c.bruto, neto+iva, "neto+iva debe reconstruir el bruto")
	}
}

// tax == gross − round(gross/1.19) must hold for arbitrary amounts.
func TestDesglosarMontoInvariante(t *testing.T) {
	for _, bruto := range []int64{1, 119, 500, 990, 1234567} {
		neto, iva := DesglosarMonto(bruto)
		esperado := decimal.NewFromInt(bruto).Div(decimal.RequireFromString("1.19")).Round(0).IntPart()
		assert.Equal(t, esperado, neto)
		assert.Equal(t, bruto-neto, iva)
		assert.Equal(t, bruto, neto+iva)
	}
}

func TestNuevaBoleta(t *testing.T) {
	emisor := Emisor{
		RutCompleto: "76123456-7",
		RazonSocial: "Terminal de Buses SpA",
		Giro:        "Servicios higienicos",
		Direccion:   "Av. Principal 123",
		Comuna:      "Estacion Central",
	}

	doc := NuevaBoleta(emisor, "Uso de ducha", 11900, 151, "2026-08-27")

	id := doc.Encabezado.IdentificacionDTE
	assert.Equal(t, TipoDTEBoleta, id.TipoDTE)
	assert.Equal(t, int64(151), id.Folio)
	assert.Equal(t, "2026-08-27", id.FechaEmision)
	assert.Equal(t, 3, id.IndicadorServicio)

	assert.Equal(t, "76123456-7", doc.Encabezado.Emisor.Rut)
	assert.Equal(t, RutConsumidorFinal, doc.Encabezado.Receptor.Rut)

	tot := doc.Encabezado.Totales
	assert.Equal(t, int64(10000), tot.MontoNeto)
	assert.Equal(t, int64(1900), tot.IVA)
	assert.Equal(t, int64(11900), tot.MontoTotal)
	assert.Equal(t, int64(0), tot.MontoExento)

	require.Len(t, doc.Detalles, 1)
	det := doc.Detalles[0]
	assert.Equal(t, "Uso de ducha", det.Nombre)
	assert.Equal(t, 1, det.Cantidad)
	assert.Equal(t, int64(11900), det.Precio)
	assert.Equal(t, int64(11900), det.MontoItem)
}
