package analytics

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort exposes the aggregate queries the service relies on.
type RepositoryPort interface {
	ProductStats(ctx context.Context, businessID int64) (ProductStats, error)
	OrderStats(ctx context.Context, businessID int64) (OrderStats, error)
	MovementsByType(ctx context.Context, businessID int64, from, to time.Time) ([]TypeSummary, error)
	TopUsage(ctx context.Context, businessID int64, from, to time.Time, limit int) ([]ProductUsage, error)
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a repository with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Stats returns product and purchase order aggregates for the tenant.
func (s *Service) Stats(ctx context.Context, businessID int64) (Stats, error) {
	if businessID == 0 {
		return Stats{}, shared.InvalidInput("business required")
	}
	key, err := s.cache.BuildKey(ctx, businessID, "stats")
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		stats := Stats{GeneratedAt: s.now().UTC()}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats.Products, err = s.repo.ProductStats(gctx, businessID)
			return err
		})
		g.Go(func() error {
			var err error
			stats.PurchaseOrders, err = s.repo.OrderStats(gctx, businessID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return stats, nil
	})
	return out, err
}

// Movements summarises ledger activity in [from, to]. Zero bounds default
// to the trailing thirty days.
func (s *Service) Movements(ctx context.Context, businessID int64, from, to time.Time) (MovementAnalytics, error) {
	if businessID == 0 {
		return MovementAnalytics{}, shared.InvalidInput("business required")
	}
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultRange)
	}
	if from.After(to) {
		return MovementAnalytics{}, shared.InvalidInput("from must not be after to")
	}
	key, err := s.cache.BuildKey(ctx, businessID, "movements",
		strconv.FormatInt(from.Unix(), 10), strconv.FormatInt(to.Unix(), 10))
	if err != nil {
		return MovementAnalytics{}, err
	}
	var out MovementAnalytics
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		result := MovementAnalytics{From: from, To: to}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.ByType, err = s.repo.MovementsByType(gctx, businessID, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			result.TopProducts, err = s.repo.TopUsage(gctx, businessID, from, to, topProductsLimit)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, nil
	})
	return out, err
}

// Invalidate bumps the tenant's cache version.
func (s *Service) Invalidate(ctx context.Context, businessID int64) error {
	return s.cache.Bump(ctx, businessID)
}
