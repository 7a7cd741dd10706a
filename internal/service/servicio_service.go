package service

import (
	"context"
	"errors"

	"github.com/dorian-cesar/backend-banos/internal/dto"
	"github.com/dorian-cesar/backend-banos/internal/model"
	"github.com/dorian-cesar/backend-banos/internal/repository"

	"github.com/google/uuid"
)

var ErrServicioNoEncontrado = errors.New("servicio no encontrado")

type ServicioService interface {
	Crear(ctx context.Context, req dto.CrearServicioRequest) (*dto.ServicioResponse, error)
	Listar(ctx context.Context, incluirInactivos bool) ([]dto.ServicioResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarServicioRequest) (*dto.ServicioResponse, error)
}

type servicioService struct {
	repo repository.ServicioRepository
}

func NewServicioService(repo repository.ServicioRepository) ServicioService {
	return &servicioService{repo: repo}
}

func (s *servicioService) Crear(ctx context.Context, req dto.CrearServicioRequest) (*dto.ServicioResponse, error) {
	svc := &model.Servicio{
		Nombre: req.Nombre,
		Precio: req.Precio,
		Activo: true,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	resp := servicioToResponse(svc)
	return &resp, nil
}

func (s *servicioService) Listar(ctx context.Context, incluirInactivos bool) ([]dto.ServicioResponse, error) {
	servicios, err := s.repo.List(ctx, incluirInactivos)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ServicioResponse, len(servicios))
	for i := range servicios {
		resp[i] = servicioToResponse(&servicios[i])
	}
	return resp, nil
}

func (s *servicioService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarServicioRequest) (*dto.ServicioResponse, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrServicioNoEncontrado
	}
	if req.Nombre != "" {
		svc.Nombre = req.Nombre
	}
	if req.Precio != nil {
		svc.Precio = *req.Precio
	}
	if req.Activo != nil {
		svc.Activo = *req.Activo
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	resp := servicioToResponse(svc)
	return &resp, nil
}

func servicioToResponse(s *model.Servicio) dto.ServicioResponse {
	return dto.ServicioResponse{
		ID:     s.ID.String(),
		Nombre: s.Nombre,
		Precio: s.Precio,
		Activo: s.Activo,
	}
}
