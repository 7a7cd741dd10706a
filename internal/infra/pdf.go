package infra

// pdf.go: paper copy of an emitted boleta using go-pdf/fpdf.
// Thermal receipt-style layout: issuer header, folio, product, gross price
// with the net/IVA breakdown, and the SII status.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/sii"

	"github.com/go-pdf/fpdf"
)

// GenerateBoletaPDF writes a receipt copy for an emitted boleta and returns
// the path. storagePath is created if needed.
func GenerateBoletaPDF(b *model.Boleta, razonSocial, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: crear directorio: %w", err)
	}

	// Compound folios ("123-456789") need a filesystem-safe name
	fileName := fmt.Sprintf("boleta_%s.pdf", strings.ReplaceAll(b.Folio, "-", "_"))
	filePath := filepath.Join(storagePath, fileName)

	// 74mm × 105mm, close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, razonSocial, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	titulo := "Boleta Electrónica"
	if b.Ficticia {
		titulo = "Comprobante Interno (sin valor tributario)"
	}
	pdf.CellFormat(contentW, 5, titulo, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Folio %s", b.Folio), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, b.Fecha.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	bruto := b.Precio.Round(0).IntPart()
	neto, iva := sii.DesglosarMonto(bruto)

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW*0.6, 5, b.Producto, "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.4, 5, fmt.Sprintf("$%d", bruto), "", 1, "R", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW*0.6, 4, "Neto", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.4, 4, fmt.Sprintf("$%d", neto), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW*0.6, 4, "IVA (19%)", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.4, 4, fmt.Sprintf("$%d", iva), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW*0.6, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.4, 6, fmt.Sprintf("$%d", bruto), "", 1, "R", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Estado SII: %s", b.EstadoSII), "", 1, "L", false, 0, "")
	if b.TrackID != nil {
		pdf.CellFormat(contentW, 4, fmt.Sprintf("Track ID: %s", *b.TrackID), "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: escribir %s: %w", filePath, err)
	}
	return filePath, nil
}
