package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/arka-retail/arka/internal/shared"
)

// Service orchestrates master data operations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetProduct returns a product after a scope check.
func (s *Service) GetProduct(ctx context.Context, scope shared.Scope, id int64) (Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := scope.Check(p.OwnerID); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns a page of products inside scope.
func (s *Service) ListProducts(ctx context.Context, scope shared.Scope, page, perPage int) ([]Product, shared.Pagination, error) {
	if !scope.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	pg := shared.NewPagination(page, perPage, 0)
	products, total, err := s.repo.ListProducts(ctx, scope, pg)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(page, perPage, total), nil
}

// CreateProduct validates and inserts a product for the scope's tenant.
func (s *Service) CreateProduct(ctx context.Context, scope shared.Scope, p Product) (Product, error) {
	if err := scope.Check(p.OwnerID); err != nil {
		return Product{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, fmt.Errorf("product name required: %w", shared.ErrValidation)
	}
	if p.UnitPrice.IsNegative() || p.CostPrice.IsNegative() {
		return Product{}, fmt.Errorf("product prices must not be negative: %w", shared.ErrValidation)
	}
	if p.Stock < 0 {
		return Product{}, fmt.Errorf("opening stock must not be negative: %w", shared.ErrValidation)
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct validates and updates a product after a scope check.
func (s *Service) UpdateProduct(ctx context.Context, scope shared.Scope, p Product) (Product, error) {
	current, err := s.repo.GetProduct(ctx, p.ID)
	if err != nil {
		return Product{}, err
	}
	if err := scope.Check(current.OwnerID); err != nil {
		return Product{}, err
	}
	p.OwnerID = current.OwnerID
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, fmt.Errorf("product name required: %w", shared.ErrValidation)
	}
	return s.repo.UpdateProduct(ctx, p)
}

// GetCustomer returns a customer after a scope check.
func (s *Service) GetCustomer(ctx context.Context, scope shared.Scope, id int64) (Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := scope.Check(c.OwnerID); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// ListCustomers returns a page of customers inside scope.
func (s *Service) ListCustomers(ctx context.Context, scope shared.Scope, page, perPage int) ([]Customer, shared.Pagination, error) {
	if !scope.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	pg := shared.NewPagination(page, perPage, 0)
	customers, total, err := s.repo.ListCustomers(ctx, scope, pg)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(page, perPage, total), nil
}

// CreateCustomer validates and inserts a customer for the scope's tenant.
func (s *Service) CreateCustomer(ctx context.Context, scope shared.Scope, c Customer) (Customer, error) {
	if err := scope.Check(c.OwnerID); err != nil {
		return Customer{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Customer{}, fmt.Errorf("customer name required: %w", shared.ErrValidation)
	}
	c.State = strings.TrimSpace(c.State)
	return s.repo.CreateCustomer(ctx, c)
}
