package folio

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
)

// Existencia checks whether a folio string was already persisted.
type Existencia interface {
	ExisteFolio(ctx context.Context, folio string) (bool, error)
}

const maxIntentosFicticio = 25

// GenerarFicticio produces a locally-unique "NNN-NNNN" placeholder folio,
// re-rolling on collision against the persisted history. The space (9e6
// combinations) is large relative to expected volume; if every bounded
// attempt collides the last candidate is kept anyway; the residual collision
// probability is an accepted operational risk, not a hard failure.
func GenerarFicticio(ctx context.Context, existe Existencia) (string, error) {
	var candidato string
	for i := 0; i < maxIntentosFicticio; i++ {
		candidato = fmt.Sprintf("%03d-%04d", rand.IntN(1000), rand.IntN(10000))
		ya, err := existe.ExisteFolio(ctx, candidato)
		if err != nil {
			return "", fmt.Errorf("folio: verificar ficticio: %w", err)
		}
		if !ya {
			return candidato, nil
		}
	}
	log.Warn().Str("folio", candidato).Int("intentos", maxIntentosFicticio).
		Msg("folio: todos los candidatos ficticios colisionaron, se usa el ultimo")
	return candidato, nil
}

// Renumerar appends a random 6-digit suffix to a folio rejected by the SII as
// a collision (estado RSC), so the local record stays unique without
// pretending the original numeric folio is still clean.
func Renumerar(folio int64) string {
	return fmt.Sprintf("%d-%06d", folio, 100000+rand.IntN(900000))
}
