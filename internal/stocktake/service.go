package stocktake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort abstracts stocktake persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, businessID, id int64) (Stocktake, error)
	List(ctx context.Context, filter Filter) ([]Stocktake, int, error)
}

// LedgerPort is the stock ledger write path.
type LedgerPort interface {
	ApplyMovement(ctx context.Context, input inventory.MovementInput) (inventory.MovementResult, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reconciles physical counts against the ledger.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	audit  AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, ledger LedgerPort, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit}
}

// Reconcile compares each count with the believed stock and books an
// adjustment for every difference. Exact matches are recorded on the
// stocktake but leave the ledger untouched. The batch is one transaction.
func (s *Service) Reconcile(ctx context.Context, businessID, actorID int64, notes string, counts []Count) (Result, error) {
	if err := validateCounts(businessID, counts); err != nil {
		return Result{}, err
	}
	ordered := make([]Count, len(counts))
	copy(ordered, counts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = Result{Adjustments: []Adjustment{}}
		st, err := tx.InsertStocktake(ctx, Stocktake{BusinessID: businessID, ActorID: actorID, Notes: strings.TrimSpace(notes)})
		if err != nil {
			return err
		}
		for _, count := range ordered {
			current, err := tx.LockStock(ctx, businessID, count.ProductID)
			if err != nil {
				return err
			}
			line := Line{
				StocktakeID:      st.ID,
				ProductID:        count.ProductID,
				ExpectedQuantity: current,
				CountedQuantity:  count.CountedQuantity,
				Discrepancy:      count.CountedQuantity.Sub(current),
				Notes:            strings.TrimSpace(count.Notes),
			}
			if !line.Discrepancy.IsZero() {
				applied, err := s.ledger.ApplyMovement(ctx, inventory.MovementInput{
					BusinessID: businessID,
					ProductID:  count.ProductID,
					Type:       inventory.MovementAdjustment,
					Quantity:   count.CountedQuantity,
					Reason:     adjustmentReason(line.Discrepancy),
					Notes:      line.Notes,
					RefModule:  inventory.RefStocktake,
					RefID:      st.ID,
					ActorID:    actorID,
				})
				if err != nil {
					return err
				}
				movementID := applied.Movement.ID
				line.MovementID = &movementID
				result.Adjustments = append(result.Adjustments, Adjustment{
					ProductID:       count.ProductID,
					PreviousStock:   applied.PreviousStock,
					CountedQuantity: count.CountedQuantity,
					Discrepancy:     line.Discrepancy,
					MovementID:      movementID,
				})
			}
			if line.ID, err = tx.InsertLine(ctx, line); err != nil {
				return err
			}
			st.Lines = append(st.Lines, line)
		}
		st.LineCount = len(st.Lines)
		st.AdjustmentCount = len(result.Adjustments)
		if err := tx.FinishStocktake(ctx, st.ID, st.LineCount, st.AdjustmentCount); err != nil {
			return err
		}
		result.Stocktake = st
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			BusinessID: businessID,
			ActorID:    actorID,
			Action:     "stocktake:reconcile",
			Entity:     "stocktake",
			EntityID:   strconv.FormatInt(result.Stocktake.ID, 10),
			Meta:       map[string]any{"lines": result.Stocktake.LineCount, "adjustments": result.Stocktake.AdjustmentCount},
		})
	}
	return result, nil
}

// Get loads a stocktake with its lines.
func (s *Service) Get(ctx context.Context, businessID, id int64) (Stocktake, error) {
	return s.repo.Get(ctx, businessID, id)
}

// List returns stocktake headers newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Stocktake, int, error) {
	if filter.BusinessID == 0 {
		return nil, 0, shared.InvalidInput("business required")
	}
	return s.repo.List(ctx, filter)
}

func validateCounts(businessID int64, counts []Count) error {
	if businessID == 0 {
		return shared.InvalidInput("business required")
	}
	if len(counts) == 0 {
		return shared.InvalidInput("at least one count required")
	}
	seen := make(map[int64]struct{}, len(counts))
	for i, c := range counts {
		if c.ProductID <= 0 {
			return shared.InvalidInput("line %d: product required", i+1)
		}
		if _, dup := seen[c.ProductID]; dup {
			return shared.InvalidInput("line %d: product %d counted twice", i+1, c.ProductID)
		}
		seen[c.ProductID] = struct{}{}
		if c.CountedQuantity.IsNegative() {
			return fmt.Errorf("%w: line %d", inventory.ErrNegativeLevel, i+1)
		}
	}
	return nil
}

func adjustmentReason(discrepancy decimal.Decimal) string {
	if discrepancy.IsPositive() {
		return reasonSurplus
	}
	return reasonShortage
}
