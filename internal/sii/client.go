// Package sii talks to the SimpleAPI gateway that signs, wraps and submits
// DTEs to the Chilean tax authority (SII), and polls their processing status.
package sii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
)

// Gateway is the four-step DTE contract plus the folio-issuance call.
// All methods are safe for concurrent use.
type Gateway interface {
	// GenerarDTE signs a boleta against the backing CAF file and returns the
	// raw DTE XML.
	GenerarDTE(ctx context.Context, doc Documento, cafPath string) (string, error)
	// GenerarSobre wraps a generated DTE plus the certificate into a
	// submission envelope.
	GenerarSobre(ctx context.Context, dteXML string, folio int64, res caf.Resolucion) (string, error)
	// EnviarSobre submits the envelope and returns the SII tracking id.
	EnviarSobre(ctx context.Context, sobreXML string, folio int64) (string, error)
	// ConsultarEstado polls the processing status for a tracking id.
	ConsultarEstado(ctx context.Context, trackID string) (string, error)
	// SolicitarFolios requests a new CAF for the given folio quantity and
	// returns the raw CAF document.
	SolicitarFolios(ctx context.Context, cantidad int64) ([]byte, error)
}

// ClientConfig holds everything the gateway client needs per call.
type ClientConfig struct {
	BaseURL   string
	FoliosURL string // folio-issuance service, defaults to the public endpoint
	APIKey    string
	CertPath  string
	CertRut   string
	CertPass  string
	EmisorRut string // "76123456-7"
	Ambiente  int    // 0 certificación, 1 producción
}

const defaultFoliosURL = "https://servicios.simpleapi.cl/api/folios/get"

// Client is the HTTP implementation of Gateway. Generation, envelope and
// submission carry large multipart bodies (certificate + generated files) and
// get a long timeout; status queries are small and time out fast.
type Client struct {
	cfg   ClientConfig
	large *http.Client
	small *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.FoliosURL == "" {
		cfg.FoliosURL = defaultFoliosURL
	}
	return &Client{
		cfg:   cfg,
		large: &http.Client{Timeout: 120 * time.Second},
		small: &http.Client{Timeout: 30 * time.Second},
	}
}

type certificado struct {
	Rut      string `json:"Rut"`
	Password string `json:"Password"`
}

func (c *Client) certificado() certificado {
	return certificado{Rut: c.cfg.CertRut, Password: c.cfg.CertPass}
}

// ── multipart helpers ────────────────────────────────────────────────────────

type multipartBody struct {
	buf *bytes.Buffer
	w   *multipart.Writer
}

func newMultipartBody() *multipartBody {
	buf := &bytes.Buffer{}
	return &multipartBody{buf: buf, w: multipart.NewWriter(buf)}
}

func (m *multipartBody) addFile(field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sii: abrir %s: %w", path, err)
	}
	defer f.Close()
	part, err := m.w.CreateFormFile(field, f.Name())
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (m *multipartBody) addBytes(field, filename string, content []byte) error {
	part, err := m.w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = part.Write(content)
	return err
}

func (m *multipartBody) addInput(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sii: marshal input: %w", err)
	}
	return m.w.WriteField("input", string(data))
}

func (m *multipartBody) close() error { return m.w.Close() }

func (c *Client) post(ctx context.Context, client *http.Client, url, auth string, body *multipartBody) ([]byte, error) {
	if err := body.close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body.buf)
	if err != nil {
		return nil, fmt.Errorf("sii: crear request: %w", err)
	}
	req.Header.Set("Content-Type", body.w.FormDataContentType())
	req.Header.Set("Authorization", auth)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sii: %s no accesible: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sii: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sii: %s devolvio %d: %s", url, resp.StatusCode, truncate(data, 300))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// ── Gateway implementation ───────────────────────────────────────────────────

type payloadDTE struct {
	Documento   Documento   `json:"Documento"`
	Certificado certificado `json:"Certificado"`
}

func (c *Client) GenerarDTE(ctx context.Context, doc Documento, cafPath string) (string, error) {
	body := newMultipartBody()
	if err := body.addFile("files", c.cfg.CertPath); err != nil {
		return "", err
	}
	if err := body.addFile("files2", cafPath); err != nil {
		return "", err
	}
	if err := body.addInput(payloadDTE{Documento: doc, Certificado: c.certificado()}); err != nil {
		return "", err
	}
	data, err := c.post(ctx, c.large, c.cfg.BaseURL+"/dte/generar", c.cfg.APIKey, body)
	if err != nil {
		return "", fmt.Errorf("generar dte: %w", err)
	}
	return string(data), nil
}

type caratula struct {
	RutEmisor        string `json:"RutEmisor"`
	RutReceptor      string `json:"RutReceptor"`
	FechaResolucion  string `json:"FechaResolucion"`
	NumeroResolucion int    `json:"NumeroResolucion"`
}

func (c *Client) GenerarSobre(ctx context.Context, dteXML string, folio int64, res caf.Resolucion) (string, error) {
	input := struct {
		Certificado certificado `json:"Certificado"`
		Caratula    caratula    `json:"Caratula"`
	}{
		Certificado: c.certificado(),
		Caratula: caratula{
			RutEmisor:        c.cfg.EmisorRut,
			RutReceptor:      RutSII,
			FechaResolucion:  res.FechaResolucion,
			NumeroResolucion: res.NumeroResolucion,
		},
	}
	body := newMultipartBody()
	if err := body.addInput(input); err != nil {
		return "", err
	}
	if err := body.addFile("files", c.cfg.CertPath); err != nil {
		return "", err
	}
	if err := body.addBytes("files", fmt.Sprintf("dte_%d.xml", folio), []byte(dteXML)); err != nil {
		return "", err
	}
	data, err := c.post(ctx, c.large, c.cfg.BaseURL+"/envio/generar", c.cfg.APIKey, body)
	if err != nil {
		return "", fmt.Errorf("generar sobre: %w", err)
	}
	return string(data), nil
}

func (c *Client) EnviarSobre(ctx context.Context, sobreXML string, folio int64) (string, error) {
	input := struct {
		Certificado certificado `json:"Certificado"`
		Ambiente    int         `json:"Ambiente"`
		Tipo        int         `json:"Tipo"`
	}{Certificado: c.certificado(), Ambiente: c.cfg.Ambiente, Tipo: 2}

	body := newMultipartBody()
	if err := body.addFile("files", c.cfg.CertPath); err != nil {
		return "", err
	}
	if err := body.addBytes("files2", fmt.Sprintf("sobre_%d.xml", folio), []byte(sobreXML)); err != nil {
		return "", err
	}
	if err := body.addInput(input); err != nil {
		return "", err
	}
	data, err := c.post(ctx, c.large, c.cfg.BaseURL+"/envio/enviar", c.cfg.APIKey, body)
	if err != nil {
		return "", fmt.Errorf("enviar sobre: %w", err)
	}

	var out struct {
		TrackID json.Number `json:"trackId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("enviar sobre: decodificar respuesta: %w", err)
	}
	if out.TrackID.String() == "" {
		return "", fmt.Errorf("enviar sobre: respuesta sin trackId: %s", truncate(data, 200))
	}
	return out.TrackID.String(), nil
}

func (c *Client) ConsultarEstado(ctx context.Context, trackID string) (string, error) {
	input := struct {
		Certificado        certificado `json:"Certificado"`
		RutEmpresa         string      `json:"RutEmpresa"`
		TrackID            string      `json:"TrackId"`
		Ambiente           int         `json:"Ambiente"`
		ServidorBoletaREST bool        `json:"ServidorBoletaREST"`
	}{
		Certificado:        c.certificado(),
		RutEmpresa:         c.cfg.EmisorRut,
		TrackID:            trackID,
		Ambiente:           c.cfg.Ambiente,
		ServidorBoletaREST: true,
	}
	body := newMultipartBody()
	if err := body.addFile("files", c.cfg.CertPath); err != nil {
		return "", err
	}
	if err := body.addInput(input); err != nil {
		return "", err
	}
	data, err := c.post(ctx, c.small, c.cfg.BaseURL+"/consulta/envio", c.cfg.APIKey, body)
	if err != nil {
		return "", fmt.Errorf("consultar estado: %w", err)
	}

	// The gateway reports the status at the top level or inside detalles[0],
	// depending on the query path it used against the SII.
	var out struct {
		Estado   string `json:"estado"`
		Detalles []struct {
			Estado string `json:"estado"`
		} `json:"detalles"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("consultar estado: decodificar respuesta: %w", err)
	}
	if out.Estado != "" {
		return out.Estado, nil
	}
	if len(out.Detalles) > 0 {
		return out.Detalles[0].Estado, nil
	}
	return "", nil
}

func (c *Client) SolicitarFolios(ctx context.Context, cantidad int64) ([]byte, error) {
	input := struct {
		RutCertificado string `json:"RutCertificado"`
		Password       string `json:"Password"`
		RutEmpresa     string `json:"RutEmpresa"`
		Ambiente       int    `json:"Ambiente"`
	}{
		RutCertificado: c.cfg.CertRut,
		Password:       c.cfg.CertPass,
		RutEmpresa:     c.cfg.EmisorRut,
		Ambiente:       c.cfg.Ambiente,
	}
	body := newMultipartBody()
	if err := body.addInput(input); err != nil {
		return nil, err
	}
	if err := body.addFile("files", c.cfg.CertPath); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%d/%d", c.cfg.FoliosURL, TipoDTEBoleta, cantidad)
	data, err := c.post(ctx, c.large, url, c.cfg.APIKey, body)
	if err != nil {
		return nil, fmt.Errorf("solicitar folios: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("solicitar folios: no se recibio CAF desde el gateway")
	}
	return data, nil
}
