package procurement

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, businessID, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter Filter) ([]PurchaseOrder, int, error)
}

// CatalogPort exposes the catalog lookups needed to build orders.
type CatalogPort interface {
	GetVendor(ctx context.Context, businessID, id int64) (catalog.Vendor, error)
	GetProducts(ctx context.Context, businessID int64, ids []int64) (map[int64]catalog.Product, error)
}

// LedgerPort exposes the stock ledger.
type LedgerPort interface {
	ApplyMovement(ctx context.Context, input inventory.MovementInput) (inventory.MovementResult, error)
	ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, int, error)
}

// IdempotencyPort reserves receipt keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Options tunes receiving policy.
type Options struct {
	AllowOverReceipt bool
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	ledger      LedgerPort
	audit       AuditPort
	idempotency IdempotencyPort
	integration IntegrationHandler
	opts        Options
	now         func() time.Time
}

// NewService constructs procurement service. audit, idem and integration may be nil.
func NewService(repo RepositoryPort, catalog CatalogPort, ledger LedgerPort, audit AuditPort, idem IdempotencyPort, integration IntegrationHandler, opts Options) *Service {
	return &Service{
		repo:        repo,
		catalog:     catalog,
		ledger:      ledger,
		audit:       audit,
		idempotency: idem,
		integration: integration,
		opts:        opts,
		now:         time.Now,
	}
}

// Receipt is the outcome of one receiving call.
type Receipt struct {
	Order     PurchaseOrder        `json:"purchase_order"`
	Movements []inventory.Movement `json:"movements"`
}

// CreatePurchaseOrder stores a draft order. Item cost and unit are copied
// from the product unless the line overrides the cost.
func (s *Service) CreatePurchaseOrder(ctx context.Context, businessID, actorID int64, input CreateInput) (PurchaseOrder, error) {
	if err := validateCreate(input); err != nil {
		return PurchaseOrder{}, err
	}
	vendor, err := s.catalog.GetVendor(ctx, businessID, input.VendorID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if vendor.Status != catalog.VendorActive {
		return PurchaseOrder{}, fmt.Errorf("%w: %s is %s", ErrVendorInactive, vendor.Name, vendor.Status)
	}

	ids := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, businessID, ids)
	if err != nil {
		return PurchaseOrder{}, err
	}

	po := PurchaseOrder{
		BusinessID:           businessID,
		VendorID:             input.VendorID,
		Number:               generateNumber(s.now()),
		Status:               StatusDraft,
		TaxAmount:            input.TaxAmount,
		ShippingCost:         input.ShippingCost,
		DiscountAmount:       input.DiscountAmount,
		Notes:                strings.TrimSpace(input.Notes),
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		CreatedBy:            actorID,
	}
	for _, line := range input.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return PurchaseOrder{}, fmt.Errorf("%w: %d", inventory.ErrProductNotFound, line.ProductID)
		}
		if !product.IsActive {
			return PurchaseOrder{}, shared.InvalidInput("product %d is inactive", line.ProductID)
		}
		cost := product.CostPerUnit
		if line.UnitCost != nil {
			cost = *line.UnitCost
		}
		item := Item{
			ProductID:        product.ID,
			ProductName:      product.Name,
			Unit:             product.Unit,
			Quantity:         line.Quantity,
			UnitCost:         cost,
			LineTotal:        lineTotal(line.Quantity, cost),
			ReceivedQuantity: decimal.Zero,
		}
		po.Subtotal += item.LineTotal
		po.Items = append(po.Items, item)
	}
	po.Total = po.Subtotal + po.TaxAmount + po.ShippingCost - po.DiscountAmount
	if input.Total != nil {
		po.Total = *input.Total
	}
	if po.Total < 0 {
		return PurchaseOrder{}, shared.InvalidInput("total cannot be negative")
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		for i := range po.Items {
			po.Items[i].PurchaseOrderID = created.ID
			id, err := tx.InsertItem(ctx, po.Items[i])
			if err != nil {
				return err
			}
			po.Items[i].ID = id
		}
		created.Items = po.Items
		po = created
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, businessID, actorID, "procurement:po.create", po.ID, map[string]any{"number": po.Number, "total": po.Total})
	return po, nil
}

// ChangeStatus moves an order along the workflow. Confirming records the
// approver; a manual close-out to received stamps the delivery date without
// touching stock.
func (s *Service) ChangeStatus(ctx context.Context, businessID, actorID, orderID int64, to Status) (PurchaseOrder, error) {
	if !to.Valid() {
		return PurchaseOrder{}, shared.InvalidInput("unknown status %q", to)
	}
	var (
		po   PurchaseOrder
		from Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.LockOrder(ctx, businessID, orderID)
		if err != nil {
			return err
		}
		from = po.Status
		if !CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}
		now := s.now()
		po.Status = to
		switch to {
		case StatusConfirmed:
			po.ApprovedBy = &actorID
			po.ApprovedAt = &now
		case StatusReceived:
			po.ReceivedBy = &actorID
			po.ActualDeliveryDate = &now
		}
		return tx.UpdateStatus(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.statusChanged(ctx, po, from, actorID)
	return po, nil
}

// ReceiveItems books delivered quantities into the ledger and marks the order
// received once every item is complete. The whole call is one transaction.
// A non-empty idempotencyKey is reserved first so a replay is rejected.
func (s *Service) ReceiveItems(ctx context.Context, businessID, actorID, orderID int64, lines []ReceiveLine, idempotencyKey string) (Receipt, error) {
	if err := validateReceipt(lines); err != nil {
		return Receipt{}, err
	}

	key := ""
	if idempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("%d:%d:%s", businessID, orderID, idempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Receipt{}, err
		}
	}

	var (
		receipt Receipt
		from    Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receipt = Receipt{}
		po, err := tx.LockOrder(ctx, businessID, orderID)
		if err != nil {
			return err
		}
		from = po.Status
		if po.Status != StatusConfirmed {
			return fmt.Errorf("%w: receiving requires a confirmed order, got %s", shared.ErrInvalidState, po.Status)
		}

		index := make(map[int64]int, len(po.Items))
		for i, item := range po.Items {
			index[item.ID] = i
		}
		ordered := make([]ReceiveLine, len(lines))
		copy(ordered, lines)
		for _, line := range ordered {
			if _, ok := index[line.ItemID]; !ok {
				return fmt.Errorf("%w: %d", ErrItemNotFound, line.ItemID)
			}
		}
		// Lock products in ascending id order.
		sort.SliceStable(ordered, func(a, b int) bool {
			pa, pb := po.Items[index[ordered[a].ItemID]].ProductID, po.Items[index[ordered[b].ItemID]].ProductID
			if pa != pb {
				return pa < pb
			}
			return ordered[a].ItemID < ordered[b].ItemID
		})

		for _, line := range ordered {
			item := &po.Items[index[line.ItemID]]
			received := item.ReceivedQuantity.Add(line.Quantity)
			if !s.opts.AllowOverReceipt && received.GreaterThan(item.Quantity) {
				return fmt.Errorf("%w: item %d ordered %s, received %s", ErrOverReceipt, item.ID, item.Quantity, received)
			}
			cost := item.UnitCost
			result, err := s.ledger.ApplyMovement(ctx, inventory.MovementInput{
				BusinessID:  businessID,
				ProductID:   item.ProductID,
				Type:        inventory.MovementReceive,
				Quantity:    line.Quantity,
				UnitCost:    &cost,
				Reason:      "Purchase order " + po.Number,
				BatchNumber: line.BatchNumber,
				ExpiryDate:  line.ExpiryDate,
				RefModule:   inventory.RefPurchaseOrder,
				RefID:       po.ID,
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
			if err := tx.AddReceived(ctx, item.ID, line.Quantity); err != nil {
				return err
			}
			item.ReceivedQuantity = received
			receipt.Movements = append(receipt.Movements, result.Movement)
		}

		if po.Complete() {
			now := s.now()
			po.Status = StatusReceived
			po.ReceivedBy = &actorID
			po.ActualDeliveryDate = &now
			if err := tx.UpdateStatus(ctx, po); err != nil {
				return err
			}
		}
		receipt.Order = po
		return nil
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Receipt{}, err
	}

	s.recordAudit(ctx, businessID, actorID, "procurement:po.receive", orderID, map[string]any{
		"number": receipt.Order.Number,
		"lines":  len(lines),
		"status": string(receipt.Order.Status),
	})
	if receipt.Order.Status != from {
		s.statusChanged(ctx, receipt.Order, from, actorID)
	}
	return receipt, nil
}

// GetPurchaseOrder loads an order with its items.
func (s *Service) GetPurchaseOrder(ctx context.Context, businessID, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, businessID, id)
}

// ListReceipts returns the receive movements booked against an order.
func (s *Service) ListReceipts(ctx context.Context, businessID, id int64) ([]inventory.Movement, error) {
	movements, _, err := s.ledger.ListMovements(ctx, inventory.MovementFilter{
		BusinessID: businessID,
		RefModule:  inventory.RefPurchaseOrder,
		RefID:      id,
		Limit:      500,
	})
	return movements, err
}

// ListPurchaseOrders lists orders for a tenant.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter Filter) ([]PurchaseOrder, int, error) {
	if filter.BusinessID == 0 {
		return nil, 0, shared.InvalidInput("business required")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.InvalidInput("unknown status %q", filter.Status)
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) statusChanged(ctx context.Context, po PurchaseOrder, from Status, actorID int64) {
	s.recordAudit(ctx, po.BusinessID, actorID, "procurement:po.status", po.ID, map[string]any{
		"number": po.Number,
		"from":   string(from),
		"to":     string(po.Status),
	})
	if s.integration == nil {
		return
	}
	s.integration.HandleStatusChanged(ctx, StatusChangedEvent{
		BusinessID: po.BusinessID,
		OrderID:    po.ID,
		Number:     po.Number,
		From:       from,
		To:         po.Status,
		Total:      po.Total,
		ActorID:    actorID,
		ChangedAt:  s.now(),
	})
}

func (s *Service) recordAudit(ctx context.Context, businessID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{BusinessID: businessID, ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: strconv.FormatInt(entityID, 10), Meta: meta})
}

func validateCreate(input CreateInput) error {
	if input.VendorID <= 0 {
		return shared.InvalidInput("vendor required")
	}
	if len(input.Lines) == 0 {
		return ErrNoLines
	}
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return shared.InvalidInput("line %d: product required", i+1)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d", inventory.ErrQuantityNotPositive, i+1)
		}
		if line.UnitCost != nil && *line.UnitCost < 0 {
			return shared.InvalidInput("line %d: unit cost cannot be negative", i+1)
		}
	}
	if input.TaxAmount < 0 || input.ShippingCost < 0 || input.DiscountAmount < 0 {
		return shared.InvalidInput("tax, shipping and discount must be >= 0")
	}
	return nil
}

func validateReceipt(lines []ReceiveLine) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	seen := make(map[int64]struct{}, len(lines))
	for i, line := range lines {
		if line.ItemID <= 0 {
			return shared.InvalidInput("line %d: item required", i+1)
		}
		if _, dup := seen[line.ItemID]; dup {
			return shared.InvalidInput("line %d: item %d listed twice", i+1, line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d", inventory.ErrQuantityNotPositive, i+1)
		}
	}
	return nil
}

func lineTotal(quantity decimal.Decimal, unitCost int64) int64 {
	return quantity.Mul(decimal.NewFromInt(unitCost)).Round(0).IntPart()
}

// generateNumber returns PO-YYYYMMDD-XXXXXX with a random suffix.
func generateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102"), suffix)
}

