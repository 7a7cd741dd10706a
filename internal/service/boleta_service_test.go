package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/sii"
	"github.com/dorian-cesar/backend-banos/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory BoletaRepository stub ──────────────────────────────────────────

type memBoletaRepo struct {
	mu      sync.Mutex
	boletas []model.Boleta
}

var soloDigitos = regexp.MustCompile(`^[0-9]+$`)

func (r *memBoletaRepo) Create(_ context.Context, b *model.Boleta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	r.boletas = append(r.boletas, *b)
	return nil
}

func (r *memBoletaRepo) UltimoFolio(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for i := range r.boletas {
		b := &r.boletas[i]
		if b.Ficticia || b.EstadoSII == model.EstadoColisionFolio || !soloDigitos.MatchString(b.Folio) {
			continue
		}
		if n, err := strconv.ParseInt(b.Folio, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (r *memBoletaRepo) ExisteFolio(_ context.Context, folio string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.boletas {
		if r.boletas[i].Folio == folio {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBoletaRepo) Ultima(_ context.Context) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.boletas) == 0 {
		return nil, nil
	}
	b := r.boletas[len(r.boletas)-1]
	return &b, nil
}

func (r *memBoletaRepo) List(_ context.Context, _ string, page, limit int) ([]model.Boleta, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Boleta, len(r.boletas))
	copy(out, r.boletas)
	return out, int64(len(out)), nil
}

var _ repository.BoletaRepository = (*memBoletaRepo)(nil)

// ── Gateway stub (folio issuance only) ───────────────────────────────────────

type foliosGateway struct {
	caf []byte
	err error
}

func (g *foliosGateway) GenerarDTE(context.Context, sii.Documento, string) (string, error) {
	return "", errors.New("not implemented")
}
func (g *foliosGateway) GenerarSobre(context.Context, string, int64, caf.Resolucion) (string, error) {
	return "", errors.New("not implemented")
}
func (g *foliosGateway) EnviarSobre(context.Context, string, int64) (string, error) {
	return "", errors.New("not implemented")
}
func (g *foliosGateway) ConsultarEstado(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}
func (g *foliosGateway) SolicitarFolios(context.Context, int64) ([]byte, error) {
	return g.caf, g.err
}

var _ sii.Gateway = (*foliosGateway)(nil)

type nulMailer struct{}

func (nulMailer) Send(_, _, _, _ string) error { return nil }

// ── Fixture ──────────────────────────────────────────────────────────────────

const cafValido = `<AUTORIZACION><CAF version="1.0"><DA>` +
	`<RNG><D>100</D><H>199</H></RNG>` +
	`<FA>2026-08-01</FA><IDK>100</IDK>` +
	`</DA></CAF></AUTORIZACION>`

// brokenRedis returns a client pointing nowhere: every command fails fast.
// The service must degrade, never block, when the queue is unreachable.
func brokenRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func newService(t *testing.T, repo repository.BoletaRepository, gw sii.Gateway, conCAF bool) BoletaService {
	t.Helper()
	store := caf.NewStore(t.TempDir())
	if conCAF {
		_, err := store.Guardar([]byte(cafValido))
		require.NoError(t, err)
	}
	return NewBoletaService(repo, folio.NewAllocator(store), store,
		worker.NewDispatcher(brokenRedis()), gw, nil, nulMailer{}, 100, "ops@terminal.cl")
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestEmitirPrecioInvalido(t *testing.T) {
	svc := newService(t, &memBoletaRepo{}, &foliosGateway{}, true)

	_, err := svc.Emitir(context.Background(), dto.EmitirBoletaRequest{
		Producto: "Uso de baño",
		Precio:   decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrPrecioInvalido)
}

// With no CAF loaded the sale still goes through: the ack carries a
// fictitious folio and the record is already durable when the client reads it.
func TestEmitirSinCAFEmiteFicticia(t *testing.T) {
	repo := &memBoletaRepo{}
	svc := newService(t, repo, &foliosGateway{}, false)

	resp, err := svc.Emitir(context.Background(), dto.EmitirBoletaRequest{
		Producto: "Uso de ducha",
		Precio:   decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	assert.True(t, resp.Ficticia)
	assert.Regexp(t, `^\d{3}-\d{4}$`, resp.Folio)
	assert.Equal(t, int64(0), resp.FoliosRestantes)

	require.Len(t, repo.boletas, 1)
	assert.Equal(t, model.EstadoFicticia, repo.boletas[0].EstadoSII)
	assert.True(t, repo.boletas[0].Ficticia)
}

// A real folio was assignable but the queue is down: rather than losing the
// sale or blocking, the service falls back to a fictitious record.
func TestEmitirColaCaidaDegradaAFicticia(t *testing.T) {
	repo := &memBoletaRepo{}
	svc := newService(t, repo, &foliosGateway{}, true)

	resp, err := svc.Emitir(context.Background(), dto.EmitirBoletaRequest{
		Producto: "Uso de baño",
		Precio:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.True(t, resp.Ficticia)
	require.Len(t, repo.boletas, 1)
	assert.True(t, repo.boletas[0].Ficticia)
}

func TestEmitirLoteSinCAF(t *testing.T) {
	repo := &memBoletaRepo{}
	svc := newService(t, repo, &foliosGateway{}, false)

	// First record persists synchronously; enqueue of the remainder fails
	// against the unreachable queue and surfaces as an error.
	_, err := svc.EmitirLote(context.Background(), dto.EmitirLoteRequest{
		Producto: "Uso de baño",
		Precio:   decimal.NewFromInt(500),
		Cantidad: 3,
	})
	assert.ErrorIs(t, err, ErrEncolarEmision)

	require.Len(t, repo.boletas, 1)
	b := repo.boletas[0]
	assert.True(t, b.Ficticia)
	require.NotNil(t, b.FolioLote)
	assert.Equal(t, b.Folio, *b.FolioLote)
	require.NotNil(t, b.CantidadLote)
	assert.Equal(t, 3, *b.CantidadLote)
	require.NotNil(t, b.MontoLote)
	assert.True(t, decimal.NewFromInt(1500).Equal(*b.MontoLote))
}

func TestFoliosRestantes(t *testing.T) {
	repo := &memBoletaRepo{}
	require.NoError(t, repo.Create(context.Background(), &model.Boleta{
		Folio: "150", Producto: "Uso de baño", Precio: decimal.NewFromInt(500), EstadoSII: "EPR",
	}))
	svc := newService(t, repo, &foliosGateway{}, true)

	resp, err := svc.FoliosRestantes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(49), resp.FoliosRestantes)
	assert.Equal(t, int64(150), resp.UltimoFolio)
	assert.True(t, resp.Alerta) // 49 < umbral 100
	assert.Empty(t, resp.Mensaje)
}

func TestFoliosRestantesSinDirectorio(t *testing.T) {
	store := caf.NewStore("/no/existe")
	svc := NewBoletaService(&memBoletaRepo{}, folio.NewAllocator(store), store,
		worker.NewDispatcher(brokenRedis()), &foliosGateway{}, nil, nulMailer{}, 100, "")

	_, err := svc.FoliosRestantes(context.Background())
	assert.ErrorIs(t, err, ErrCAFNoDisponible)
}

func TestInfoCAF(t *testing.T) {
	svc := newService(t, &memBoletaRepo{}, &foliosGateway{}, true)

	resp, err := svc.InfoCAF(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Rangos, 1)
	assert.Equal(t, int64(100), resp.Rangos[0].Desde)
	assert.Equal(t, int64(199), resp.Rangos[0].Hasta)
	assert.Equal(t, int64(100), resp.Rangos[0].Total)
}

// A downloaded CAF lands in the directory and widens capacity on the very
// next read.
func TestSolicitarFolios(t *testing.T) {
	gw := &foliosGateway{caf: []byte(cafValido)}
	svc := newService(t, &memBoletaRepo{}, gw, false)

	resp, err := svc.SolicitarFolios(context.Background(), 100)
	require.NoError(t, err)
	assert.Regexp(t, `^caf_.*\.xml$`, resp.Archivo)
	assert.Equal(t, 100, resp.Cantidad)

	info, err := svc.InfoCAF(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Rangos, 1)
	assert.Equal(t, int64(100), info.Rangos[0].Desde)
}

func TestSolicitarFoliosGatewayCaido(t *testing.T) {
	gw := &foliosGateway{err: errors.New("502 bad gateway")}
	svc := newService(t, &memBoletaRepo{}, gw, false)

	_, err := svc.SolicitarFolios(context.Background(), 100)
	assert.ErrorIs(t, err, ErrGatewayFolios)
}

func TestListar(t *testing.T) {
	repo := &memBoletaRepo{}
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(context.Background(), &model.Boleta{
			Folio: strconv.Itoa(100 + i), Producto: "Uso de baño",
			Precio: decimal.NewFromInt(500), EstadoSII: "EPR",
		}))
	}
	svc := newService(t, repo, &foliosGateway{}, true)

	resp, err := svc.Listar(context.Background(), dto.BoletaFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Data, 3)
}
