package worker

import (
	"context"
	"testing"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cronConfig(t *testing.T, ultimoFolio string) (FoliosCronConfig, *stubMailer) {
	t.Helper()
	store := caf.NewStore(t.TempDir())
	_, err := store.Guardar([]byte(cafTestXML))
	require.NoError(t, err)

	repo := &stubBoletaRepo{}
	if ultimoFolio != "" {
		require.NoError(t, repo.Create(context.Background(), &model.Boleta{
			Folio:     ultimoFolio,
			Producto:  "BAÑO",
			EstadoSII: "EPR",
		}))
	}

	mailer := &stubMailer{}
	return FoliosCronConfig{
		BoletaRepo:  repo,
		Allocator:   folio.NewAllocator(store),
		Mailer:      mailer,
		AlertaEmail: "ops@terminal.cl",
	}, mailer
}

func TestRevisarCapacidadAgotadaAlerta(t *testing.T) {
	// Range runs 100 to 199; the last real folio already consumed 199.
	cfg, mailer := cronConfig(t, "199")

	revisarCapacidad(context.Background(), cfg)

	require.Equal(t, 1, mailer.total())
	assert.Equal(t, "URGENTE: folios agotados", mailer.envios[0])
}

func TestRevisarCapacidadSanaNoAlerta(t *testing.T) {
	cfg, mailer := cronConfig(t, "150")

	revisarCapacidad(context.Background(), cfg)

	assert.Zero(t, mailer.total())
}

func TestRevisarCapacidadAgotadaEncola(t *testing.T) {
	cfg, mailer := cronConfig(t, "199")
	enq := &stubEnqueuer{}
	cfg.Emails = enq

	revisarCapacidad(context.Background(), cfg)

	require.Equal(t, 1, enq.total())
	assert.Equal(t, "URGENTE: folios agotados", enq.jobs[0].Subject)
	assert.Zero(t, mailer.total())
}

func TestRevisarCapacidadStoreCaidoNoAlerta(t *testing.T) {
	cfg, mailer := cronConfig(t, "199")
	cfg.Allocator = folio.NewAllocator(caf.NewStore("/no/existe"))

	revisarCapacidad(context.Background(), cfg)

	assert.Zero(t, mailer.total())
}
