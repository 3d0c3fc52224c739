package products

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Cache serves the products-with-stock listing. Bump is also called after
// every committed stock movement.
type Cache interface {
	FetchJSON(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error
	Bump(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
}

// NewService builds Service. A nil cache reads straight from the repository.
func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListWithStock returns one page of products with their per warehouse stock.
func (s *Service) ListWithStock(ctx context.Context, page, perPage int) ([]ProductWithStock, shared.Pagination, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	load := func(ctx context.Context) (any, error) {
		list, total, err := s.repo.ListWithStock(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		return shared.Page[ProductWithStock]{Data: list, Meta: shared.NewPagination(page, perPage, total)}, nil
	}
	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		listing := out.(shared.Page[ProductWithStock])
		return listing.Data, listing.Meta, nil
	}
	var listing shared.Page[ProductWithStock]
	if err := s.cache.FetchJSON(ctx, &listing, load, "products", strconv.Itoa(page), strconv.Itoa(perPage)); err != nil {
		return nil, shared.Pagination{}, err
	}
	return listing.Data, listing.Meta, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	product, err := s.validate(product)
	if err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("product cache bump failed", slog.Any("error", err))
		}
	}
	return created, nil
}
