// Package folio assigns sequential document numbers against the CAF ranges
// and generates fictitious placeholders when no real folio is available.
package folio

import (
	"github.com/dorian-cesar/backend-banos/internal/caf"
)

// RangeSource yields the currently authorized CAF ranges, ascending by Desde.
type RangeSource interface {
	Rangos() ([]caf.Rango, error)
}

// Asignacion is the result of one allocation attempt. Never cached: ranges on
// disk and the persisted folio history can both change between calls.
//
// Folio nil with FoliosRestantes > 0 signals a gap between the last consumed
// number and the next available range; the caller handles it exactly like
// true exhaustion (no real folio assignable right now).
type Asignacion struct {
	Folio           *int64
	Rango           *caf.Rango
	FoliosRestantes int64
}

// Allocator computes the next folio from the persisted maximum and the ranges.
type Allocator struct {
	source RangeSource
}

func NewAllocator(source RangeSource) *Allocator {
	return &Allocator{source: source}
}

// Asignar computes the next candidate (ultimoFolio+1), finds the lowest-Desde
// range containing it, and sums the remaining capacity over all ranges:
//
//	Σ max(0, hasta − max(desde, ultimoFolio+1) + 1)
//
// Overlapping ranges are tolerated: the first match in ascending order wins.
// The only error is caf.ErrStoreUnavailable from the underlying source.
func (a *Allocator) Asignar(ultimoFolio int64) (*Asignacion, error) {
	rangos, err := a.source.Rangos()
	if err != nil {
		return nil, err
	}

	siguiente := ultimoFolio + 1
	res := &Asignacion{}

	for i := range rangos {
		r := rangos[i]
		if r.Hasta > ultimoFolio {
			desdeValido := r.Desde
			if siguiente > desdeValido {
				desdeValido = siguiente
			}
			res.FoliosRestantes += r.Hasta - desdeValido + 1
		}
		if res.Folio == nil && r.Contiene(siguiente) {
			f := siguiente
			res.Folio = &f
			res.Rango = &rangos[i]
		}
	}
	return res, nil
}
