package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/platform/db"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the stock ledger: the only writer of product stock levels.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	integration IntegrationHandler
}

// NewService builds Service. audit and integration may be nil.
func NewService(repo RepositoryPort, audit AuditPort, integration IntegrationHandler) *Service {
	return &Service{repo: repo, audit: audit, integration: integration}
}

// ApplyMovement locks the product, applies the delta rule, appends the
// movement and persists the new level in one transaction. When ctx carries
// an outer transaction the movement joins it.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (MovementResult, error) {
	if err := validateMovement(input); err != nil {
		return MovementResult{}, err
	}

	var (
		result MovementResult
		level  StockLevel
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		level, err = tx.LockProduct(ctx, input.BusinessID, input.ProductID)
		if err != nil {
			return err
		}
		if !level.TrackStock {
			return ErrStockNotTracked
		}
		next, err := NextStock(input.Type, level.CurrentStock, input.Quantity)
		if err != nil {
			return err
		}

		movement := Movement{
			BusinessID:    input.BusinessID,
			ProductID:     input.ProductID,
			Type:          input.Type,
			Quantity:      input.Quantity,
			Unit:          level.Unit,
			PreviousStock: level.CurrentStock,
			NewStock:      next,
			Reason:        input.Reason,
			Notes:         input.Notes,
			BatchNumber:   input.BatchNumber,
			ExpiryDate:    input.ExpiryDate,
			RefModule:     input.RefModule,
			RefID:         input.RefID,
			ActorID:       input.ActorID,
		}
		unitCost := level.CostPerUnit
		if input.UnitCost != nil {
			unitCost = *input.UnitCost
		}
		moved := input.Quantity
		if input.Type == MovementAdjustment {
			moved = next.Sub(level.CurrentStock).Abs()
		}
		total := moved.Mul(decimal.NewFromInt(unitCost)).Round(0).IntPart()
		movement.UnitCost = &unitCost
		movement.TotalCost = &total

		movement.ID, movement.CreatedAt, err = tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		if err := tx.UpdateStock(ctx, StockUpdate{
			BusinessID:   input.BusinessID,
			ProductID:    input.ProductID,
			CurrentStock: next,
			BatchNumber:  input.BatchNumber,
			ExpiryDate:   input.ExpiryDate,
		}); err != nil {
			return err
		}
		result = MovementResult{Movement: movement, PreviousStock: level.CurrentStock, NewStock: next}

		db.AfterCommit(ctx, func(ctx context.Context) {
			s.afterApply(ctx, level, movement)
		})
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}
	return result, nil
}

// ListMovements lists ledger history for a tenant.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if filter.BusinessID == 0 {
		return nil, 0, shared.InvalidInput("business required")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownMovementType, filter.Type)
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) afterApply(ctx context.Context, level StockLevel, m Movement) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			BusinessID: m.BusinessID,
			ActorID:    m.ActorID,
			Action:     fmt.Sprintf("inventory:%s", m.Type),
			Entity:     "stock_movement",
			EntityID:   strconv.FormatInt(m.ID, 10),
			Meta: map[string]any{
				"product_id":     m.ProductID,
				"quantity":       m.Quantity.String(),
				"previous_stock": m.PreviousStock.String(),
				"new_stock":      m.NewStock.String(),
				"ref_module":     m.RefModule,
				"ref_id":         m.RefID,
			},
			At: m.CreatedAt,
		})
	}
	if s.integration == nil {
		return
	}
	s.integration.HandleMovementApplied(ctx, MovementAppliedEvent{
		BusinessID:    m.BusinessID,
		ProductID:     m.ProductID,
		ProductName:   level.Name,
		MovementID:    m.ID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		Status:        DeriveStatus(m.NewStock, level.MinimumStock, level.MaximumStock),
		RefModule:     m.RefModule,
		RefID:         m.RefID,
		AppliedAt:     m.CreatedAt,
	})
}

func validateMovement(input MovementInput) error {
	if input.BusinessID == 0 || input.ProductID == 0 {
		return shared.InvalidInput("business and product required")
	}
	if !input.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMovementType, input.Type)
	}
	if input.Type == MovementAdjustment {
		if input.Quantity.IsNegative() {
			return ErrNegativeLevel
		}
	} else if !input.Quantity.IsPositive() {
		return ErrQuantityNotPositive
	}
	if input.UnitCost != nil && *input.UnitCost < 0 {
		return ErrInvalidUnitCost
	}
	return nil
}
