package handler

import (
	"errors"
	"net/http"

	"github.com/dorian-cesar/backend-banos/internal/apierror"
	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/service"

	"github.com/gin-gonic/gin"
)

type BoletasHandler struct{ svc service.BoletaService }

func NewBoletasHandler(svc service.BoletaService) *BoletasHandler {
	return &BoletasHandler{svc: svc}
}

// Emitir godoc
// @Summary      Emitir una boleta electrónica
// @Description  Asigna folio (o ficticio si no hay CAF disponible) y responde de inmediato; la emisión al SII continúa en background.
// @Tags         boletas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.EmitirBoletaRequest true "Producto y precio bruto"
// @Success      201  {object} dto.EmitirBoletaResponse
// @Failure      400  {object} apierror.APIError
// @Router       /api/boletas/enviar [post]
func (h *BoletasHandler) Emitir(c *gin.Context) {
	var req dto.EmitirBoletaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Emitir(c.Request.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrFicticioFallido) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// EmitirLote godoc
// @Summary      Emitir un lote de boletas
// @Description  Emite N boletas del mismo producto/precio como lote; responde con el folio del lote y procesa el resto en background.
// @Tags         boletas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.EmitirLoteRequest true "Producto, precio y cantidad"
// @Success      201  {object} dto.EmitirLoteResponse
// @Failure      400  {object} apierror.APIError
// @Router       /api/boletas/enviar-lote [post]
func (h *BoletasHandler) EmitirLote(c *gin.Context) {
	var req dto.EmitirLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.EmitirLote(c.Request.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrEncolarEmision) || errors.Is(err, service.ErrFicticioFallido) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// FoliosRestantes godoc
// @Summary      Folios disponibles
// @Description  Capacidad restante sobre los CAF cargados, con la bandera de alerta de folios bajos.
// @Tags         boletas
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.FoliosRestantesResponse
// @Failure      503 {object} apierror.APIError
// @Router       /api/boletas/folios-restantes [get]
func (h *BoletasHandler) FoliosRestantes(c *gin.Context) {
	resp, err := h.svc.FoliosRestantes(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrCAFNoDisponible) {
			c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InfoCAF godoc
// @Summary      Rangos CAF cargados
// @Description  Lista los archivos CAF válidos con sus rangos de folios autorizados.
// @Tags         boletas
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.InfoCAFResponse
// @Failure      503 {object} apierror.APIError
// @Router       /api/boletas/info-caf [get]
func (h *BoletasHandler) InfoCAF(c *gin.Context) {
	resp, err := h.svc.InfoCAF(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrCAFNoDisponible) {
			c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SolicitarFolios godoc
// @Summary      Solicitar un nuevo CAF al SII
// @Description  Descarga un CAF de N folios desde SimpleAPI y lo deposita en el directorio de CAF.
// @Tags         boletas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.SolicitarFoliosRequest true "Cantidad de folios"
// @Success      201 {object} dto.SolicitarFoliosResponse
// @Failure      502 {object} apierror.APIError
// @Router       /api/boletas/solicitar-folios [post]
func (h *BoletasHandler) SolicitarFolios(c *gin.Context) {
	var req dto.SolicitarFoliosRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SolicitarFolios(c.Request.Context(), req.Cantidad)
	if err != nil {
		if errors.Is(err, service.ErrGatewayFolios) {
			c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary      Listar boletas
// @Description  Historial paginado de boletas emitidas, opcionalmente filtrado por fecha.
// @Tags         boletas
// @Produce      json
// @Security     BearerAuth
// @Param        fecha query string false "Fecha YYYY-MM-DD"
// @Param        page  query int    false "Página (default 1)"
// @Param        limit query int    false "Registros por página (default 50)"
// @Success      200 {object} dto.BoletaListResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/boletas [get]
func (h *BoletasHandler) Listar(c *gin.Context) {
	var filter dto.BoletaFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar boletas"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
