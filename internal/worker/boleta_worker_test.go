package worker

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/infra"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/sii"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numericoRe = regexp.MustCompile(`^[0-9]+$`)

// ── In-memory BoletaRepository stub ──────────────────────────────────────────

type stubBoletaRepo struct {
	mu        sync.Mutex
	boletas   []model.Boleta
	createErr error
}

func (r *stubBoletaRepo) Create(_ context.Context, b *model.Boleta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	r.boletas = append(r.boletas, *b)
	return nil
}

// UltimoFolio mirrors the SQL: fictitious, renumbered and compound folios
// never advance the sequence.
func (r *stubBoletaRepo) UltimoFolio(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for i := range r.boletas {
		b := &r.boletas[i]
		if b.Ficticia || b.EstadoSII == model.EstadoColisionFolio || !numericoRe.MatchString(b.Folio) {
			continue
		}
		if n, err := strconv.ParseInt(b.Folio, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (r *stubBoletaRepo) ExisteFolio(_ context.Context, folio string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.boletas {
		if r.boletas[i].Folio == folio {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubBoletaRepo) Ultima(_ context.Context) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.boletas) == 0 {
		return nil, nil
	}
	b := r.boletas[len(r.boletas)-1]
	return &b, nil
}

func (r *stubBoletaRepo) List(_ context.Context, _ string, _, _ int) ([]model.Boleta, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Boleta, len(r.boletas))
	copy(out, r.boletas)
	return out, int64(len(out)), nil
}

var _ repository.BoletaRepository = (*stubBoletaRepo)(nil)

// ── Gateway stub ─────────────────────────────────────────────────────────────

type stubGateway struct {
	generarErr  error
	sobreErr    error
	enviarErr   error
	estados     []string // consumed per poll; last value repeats
	consultaErr error
	polls       int
}

func (g *stubGateway) GenerarDTE(_ context.Context, _ sii.Documento, _ string) (string, error) {
	if g.generarErr != nil {
		return "", g.generarErr
	}
	return "<DTE>test</DTE>", nil
}

func (g *stubGateway) GenerarSobre(_ context.Context, _ string, _ int64, _ caf.Resolucion) (string, error) {
	if g.sobreErr != nil {
		return "", g.sobreErr
	}
	return "<SOBRE>test</SOBRE>", nil
}

func (g *stubGateway) EnviarSobre(_ context.Context, _ string, _ int64) (string, error) {
	if g.enviarErr != nil {
		return "", g.enviarErr
	}
	return "987654", nil
}

func (g *stubGateway) ConsultarEstado(_ context.Context, _ string) (string, error) {
	if g.consultaErr != nil {
		return "", g.consultaErr
	}
	idx := g.polls
	if idx >= len(g.estados) {
		idx = len(g.estados) - 1
	}
	g.polls++
	return g.estados[idx], nil
}

func (g *stubGateway) SolicitarFolios(_ context.Context, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

var _ sii.Gateway = (*stubGateway)(nil)

// ── Mailer stub ──────────────────────────────────────────────────────────────

type stubMailer struct {
	mu     sync.Mutex
	envios []string // subjects
}

func (m *stubMailer) Send(_, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envios = append(m.envios, subject)
	return nil
}

func (m *stubMailer) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.envios)
}

// ── Fixture ──────────────────────────────────────────────────────────────────

const cafTestXML = `<AUTORIZACION><CAF version="1.0"><DA>` +
	`<RE>76123456-7</RE><TD>39</TD>` +
	`<RNG><D>100</D><H>199</H></RNG>` +
	`<FA>2026-08-01</FA><IDK>100</IDK>` +
	`</DA></CAF></AUTORIZACION>`

type fixture struct {
	worker  *BoletaWorker
	repo    *stubBoletaRepo
	gw      *stubGateway
	mailer  *stubMailer
	cafRuta string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := caf.NewStore(t.TempDir())
	ruta, err := store.Guardar([]byte(cafTestXML))
	require.NoError(t, err)

	repo := &stubBoletaRepo{}
	gw := &stubGateway{estados: []string{"EPR"}}
	mailer := &stubMailer{}
	cfg := EmisionConfig{
		MaxConsultas:    2,
		ConsultaDelay:   time.Millisecond,
		AlertaMinFolios: 10,
		AlertaEmail:     "ops@terminal.cl",
	}
	emisor := sii.Emisor{RutCompleto: "76123456-7", RazonSocial: "Terminal SpA"}
	w := NewBoletaWorker(gw, infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		repo, store, folio.NewAllocator(store), mailer, nil, nil, emisor, cfg)
	return &fixture{worker: w, repo: repo, gw: gw, mailer: mailer, cafRuta: ruta}
}

func payload(t *testing.T, p BoletaJobPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestProcessEmisionExitosa(t *testing.T) {
	f := newFixture(t)

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
	}))

	require.Len(t, f.repo.boletas, 1)
	b := f.repo.boletas[0]
	assert.Equal(t, "151", b.Folio)
	assert.Equal(t, "EPR", b.EstadoSII)
	assert.False(t, b.Ficticia)
	assert.False(t, b.Alerta)
	require.NotNil(t, b.TrackID)
	assert.Equal(t, "987654", *b.TrackID)
	require.NotNil(t, b.XMLBase64)
	assert.NotEmpty(t, *b.XMLBase64)
	assert.Equal(t, 0, f.mailer.total())
}

// The client was already acknowledged: a gateway outage after the ack must
// still leave a durable record behind.
func TestProcessGatewayCaidoRegistraFicticiaError(t *testing.T) {
	f := newFixture(t)
	f.gw.generarErr = errors.New("connection reset")

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de ducha",
		Precio:          decimal.NewFromInt(2500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
	}))

	require.Len(t, f.repo.boletas, 1)
	b := f.repo.boletas[0]
	assert.Equal(t, model.EstadoFicticiaErrorAPI, b.EstadoSII)
	assert.True(t, b.Ficticia)
	assert.Regexp(t, `^\d{3}-\d{4}$`, b.Folio)
}

func TestProcessTimeoutEnEnvio(t *testing.T) {
	f := newFixture(t)
	f.gw.enviarErr = errors.New("timeout awaiting response")

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
	}))

	require.Len(t, f.repo.boletas, 1)
	assert.Equal(t, model.EstadoFicticiaErrorAPI, f.repo.boletas[0].EstadoSII)
}

// RSC means the authority already holds a document with this folio: the local
// record is renumbered with a suffix so it stays unique without pretending
// the numeric folio is clean.
func TestProcessColisionRenumera(t *testing.T) {
	f := newFixture(t)
	f.gw.estados = []string{model.EstadoColisionFolio}

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
	}))

	require.Len(t, f.repo.boletas, 1)
	b := f.repo.boletas[0]
	assert.Regexp(t, `^151-\d{6}$`, b.Folio)
	assert.Equal(t, model.EstadoColisionFolio, b.EstadoSII)
	assert.False(t, b.Ficticia)

	// Renumbered records must not advance the sequence
	ultimo, err := f.repo.UltimoFolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), ultimo)
}

func TestProcessEstadoNoTerminal(t *testing.T) {
	f := newFixture(t)
	f.gw.estados = []string{"PRD", "PRD"}

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
	}))

	require.Len(t, f.repo.boletas, 1)
	b := f.repo.boletas[0]
	assert.Equal(t, "DESCONOCIDO", b.EstadoSII)
	assert.Equal(t, "151", b.Folio)
	assert.Equal(t, 2, f.gw.polls)
}

// Alert latch: with capacity readings [above, below, below, above, below] the
// mail fires exactly at positions 2 and 5: the first reading under the
// threshold after one above (or ever), not on every low reading.
func TestAlertaLatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lecturas := []int64{150, 5, 4, 150, 3}
	esperado := []bool{false, true, true, false, true}

	for i, restantes := range lecturas {
		alerta := f.worker.evaluarAlertaFolios(ctx, restantes)
		assert.Equal(t, esperado[i], alerta, "lectura %d", i+1)
		require.NoError(t, f.repo.Create(ctx, &model.Boleta{
			Folio:     strconv.Itoa(1000 + i),
			Producto:  "Uso de baño",
			Precio:    decimal.NewFromInt(500),
			EstadoSII: "EPR",
			Alerta:    alerta,
		}))
	}
	assert.Equal(t, 2, f.mailer.total())
}

func TestProcessLoteCompleto(t *testing.T) {
	f := newFixture(t)
	// Seed history so the batch continues from folio 151
	require.NoError(t, f.repo.Create(context.Background(), &model.Boleta{
		Folio: "150", Producto: "Uso de baño", Precio: decimal.NewFromInt(500), EstadoSII: "EPR",
	}))

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           151,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 49,
		CantidadLote:    3,
		MontoLote:       decimal.NewFromInt(1500),
		ParentFolio:     "151",
	}))

	boletas := f.repo.boletas[1:] // skip the seed
	require.Len(t, boletas, 3)
	folios := []string{boletas[0].Folio, boletas[1].Folio, boletas[2].Folio}
	assert.Equal(t, []string{"151", "152", "153"}, folios)
	for _, b := range boletas {
		require.NotNil(t, b.FolioLote)
		assert.Equal(t, "151", *b.FolioLote)
		require.NotNil(t, b.CantidadLote)
		assert.Equal(t, 3, *b.CantidadLote)
		require.NotNil(t, b.MontoLote)
		assert.True(t, decimal.NewFromInt(1500).Equal(*b.MontoLote))
	}
}

// A batch that exhausts the range mid-way keeps going on fictitious folios:
// the group sale completes even if the CAF runs out.
func TestProcessLoteAgotamientoParcial(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Create(context.Background(), &model.Boleta{
		Folio: "198", Producto: "Uso de baño", Precio: decimal.NewFromInt(500), EstadoSII: "EPR",
	}))

	f.worker.Process(context.Background(), payload(t, BoletaJobPayload{
		Producto:        "Uso de baño",
		Precio:          decimal.NewFromInt(500),
		Folio:           199,
		CAFRuta:         f.cafRuta,
		FoliosRestantes: 1,
		CantidadLote:    3,
		MontoLote:       decimal.NewFromInt(1500),
		ParentFolio:     "199",
	}))

	boletas := f.repo.boletas[1:]
	require.Len(t, boletas, 3)
	assert.Equal(t, "199", boletas[0].Folio)
	assert.False(t, boletas[0].Ficticia)
	for _, b := range boletas[1:] {
		assert.True(t, b.Ficticia)
		assert.Equal(t, model.EstadoFicticia, b.EstadoSII)
	}
	for _, b := range boletas {
		require.NotNil(t, b.FolioLote)
		assert.Equal(t, "199", *b.FolioLote)
	}
}

func TestProcessPayloadInvalido(t *testing.T) {
	f := newFixture(t)
	f.worker.Process(context.Background(), json.RawMessage(`{no es json`))
	assert.Empty(t, f.repo.boletas)
}
