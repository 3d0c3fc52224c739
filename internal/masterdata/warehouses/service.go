package warehouses

import (
	"context"

	"github.com/odyssey-erp/depot/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, page, perPage int) ([]Warehouse, shared.Pagination, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	list, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	warehouse, err := s.validate(warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	return s.repo.Create(ctx, warehouse)
}
