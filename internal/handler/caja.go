package handler

import (
	"net/http"

	"github.com/dorian-cesar/backend-banos/internal/apierror"
	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/middleware"
	"github.com/dorian-cesar/backend-banos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary      Abrir caja
// @Description  Inicia el turno de una caja con su monto inicial. Una sola apertura activa por caja.
// @Tags         caja
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AbrirCajaRequest true "Caja y monto inicial"
// @Success      201  {object} dto.AperturaCierreResponse
// @Failure      400  {object} apierror.APIError
// @Router       /api/aperturas-cierres [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Abrir(c.Request.Context(), usuarioID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary      Cerrar caja
// @Tags         caja
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID de la apertura"
// @Param        body body dto.CerrarCajaRequest true "Monto de cierre"
// @Success      200  {object} dto.AperturaCierreResponse
// @Failure      400  {object} apierror.APIError
// @Router       /api/aperturas-cierres/{id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CajaHandler) ListarAperturas(c *gin.Context) {
	var filter dto.MovimientoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	items, total, err := h.svc.ListarAperturas(c.Request.Context(), filter.Page, filter.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar aperturas"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total, "page": filter.Page, "limit": filter.Limit})
}

// RegistrarMovimiento godoc
// @Summary      Registrar un movimiento de caja
// @Description  Agrega una venta de servicio al libro de movimientos del turno abierto.
// @Tags         caja
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearMovimientoRequest true "Detalle del movimiento"
// @Success      201  {object} dto.MovimientoResponse
// @Failure      400  {object} apierror.APIError
// @Router       /api/movimientos [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.CrearMovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), usuarioID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CajaHandler) ListarMovimientos(c *gin.Context) {
	var filter dto.MovimientoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	items, total, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total, "page": filter.Page, "limit": filter.Limit})
}
