package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/salon-inventory/internal/auth"
	"github.com/odyssey-erp/salon-inventory/internal/inventory"
	"github.com/odyssey-erp/salon-inventory/internal/platform/httpx"
	"github.com/odyssey-erp/salon-inventory/internal/platform/money"
	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Handler wires HTTP endpoints for products, categories and vendors.
type Handler struct {
	logger  *slog.Logger
	service *Service
	money   *money.Formatter
	auth    auth.Middleware
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, formatter *money.Formatter, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, money: formatter, auth: authz}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAny(auth.ScopeInventoryView, auth.ScopeInventoryEdit))
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{id}", h.handleGetProduct)
		r.Get("/categories", h.handleListCategories)
		r.Get("/categories/{id}", h.handleGetCategory)
		r.Get("/vendors", h.handleListVendors)
		r.Get("/vendors/{id}", h.handleGetVendor)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAll(auth.ScopeInventoryEdit))
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeactivateProduct)
		r.Post("/categories", h.handleCreateCategory)
		r.Put("/categories/{id}", h.handleUpdateCategory)
		r.Delete("/categories/{id}", h.handleDeleteCategory)
		r.Post("/vendors", h.handleCreateVendor)
		r.Put("/vendors/{id}", h.handleUpdateVendor)
	})
}

type productRequest struct {
	SKU             string           `json:"sku" validate:"required,max=64"`
	Barcode         string           `json:"barcode" validate:"max=64"`
	Name            string           `json:"name" validate:"required,max=200"`
	Description     string           `json:"description" validate:"max=2000"`
	Brand           string           `json:"brand" validate:"max=100"`
	Unit            string           `json:"unit" validate:"max=32"`
	CategoryID      *int64           `json:"category_id" validate:"omitempty,gt=0"`
	VendorID        *int64           `json:"vendor_id" validate:"omitempty,gt=0"`
	CostPerUnit     int64            `json:"cost_per_unit" validate:"gte=0"`
	SellingPrice    *int64           `json:"selling_price" validate:"omitempty,gte=0"`
	RetailPrice     *int64           `json:"retail_price" validate:"omitempty,gte=0"`
	MinimumStock    decimal.Decimal  `json:"minimum_stock"`
	MaximumStock    *decimal.Decimal `json:"maximum_stock"`
	ReorderPoint    *decimal.Decimal `json:"reorder_point"`
	ReorderQuantity *decimal.Decimal `json:"reorder_quantity"`
	LeadTimeDays    *int             `json:"lead_time_days" validate:"omitempty,gte=0"`
	TrackStock      *bool            `json:"track_stock"`
	IsRetail        bool             `json:"is_retail"`
	IsActive        *bool            `json:"is_active"`
	InitialStock    decimal.Decimal  `json:"initial_stock"`
}

func (req productRequest) input() ProductInput {
	track := true
	if req.TrackStock != nil {
		track = *req.TrackStock
	}
	return ProductInput{
		SKU:             req.SKU,
		Barcode:         req.Barcode,
		Name:            req.Name,
		Description:     req.Description,
		Brand:           req.Brand,
		Unit:            req.Unit,
		CategoryID:      req.CategoryID,
		VendorID:        req.VendorID,
		CostPerUnit:     req.CostPerUnit,
		SellingPrice:    req.SellingPrice,
		RetailPrice:     req.RetailPrice,
		MinimumStock:    req.MinimumStock,
		MaximumStock:    req.MaximumStock,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		LeadTimeDays:    req.LeadTimeDays,
		TrackStock:      track,
		IsRetail:        req.IsRetail,
		IsActive:        req.IsActive,
		InitialStock:    req.InitialStock,
	}
}

// ProductResponse is the wire shape of a product.
type ProductResponse struct {
	Product
	StockStatus         inventory.StockStatus `json:"stock_status"`
	CostPerUnitDisplay  string                `json:"cost_per_unit_display"`
	SellingPriceDisplay string                `json:"selling_price_display,omitempty"`
	RetailPriceDisplay  string                `json:"retail_price_display,omitempty"`
	StockValue          int64                 `json:"stock_value"`
	StockValueDisplay   string                `json:"stock_value_display"`
}

// NewProductResponse decorates p with status and display amounts.
func NewProductResponse(p Product, f *money.Formatter) ProductResponse {
	value := p.CurrentStock.Mul(decimal.NewFromInt(p.CostPerUnit)).Round(0).IntPart()
	resp := ProductResponse{
		Product:            p,
		StockStatus:        p.Status(),
		CostPerUnitDisplay: f.Format(p.CostPerUnit),
		StockValue:         value,
		StockValueDisplay:  f.Format(value),
	}
	if p.SellingPrice != nil {
		resp.SellingPriceDisplay = f.Format(*p.SellingPrice)
	}
	if p.RetailPrice != nil {
		resp.RetailPriceDisplay = f.Format(*p.RetailPrice)
	}
	return resp
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	q := r.URL.Query()
	filter := ProductFilter{
		BusinessID: id.BusinessID,
		Status:     inventory.StockStatus(q.Get("status")),
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	var err error
	if filter.CategoryID, err = httpx.QueryInt64(r, "category_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.VendorID, err = httpx.QueryInt64(r, "vendor_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.IsActive, err = httpx.QueryBool(r, "is_active"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.IsRetail, err = httpx.QueryBool(r, "is_retail"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit, filter.Offset = httpx.Page(r, 50, 500)

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog list products", err)
		return
	}
	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, NewProductResponse(p, h.money))
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, total, filter.Limit, filter.Offset))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewProductResponse(p, h.money))
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), ident.BusinessID, ident.UserID, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog create product", err)
		return
	}
	h.logger.Info("product created", slog.Int64("business_id", ident.BusinessID), slog.Int64("product_id", p.ID))
	httpx.JSON(w, http.StatusCreated, NewProductResponse(p, h.money))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), ident.BusinessID, ident.UserID, id, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewProductResponse(p, h.money))
}

func (h *Handler) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivateProduct(r.Context(), ident.BusinessID, ident.UserID, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog deactivate product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	SortOrder   int    `json:"sort_order"`
}

func (req categoryRequest) input() CategoryInput {
	return CategoryInput{Name: req.Name, Description: req.Description, ParentID: req.ParentID, SortOrder: req.SortOrder}
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	categories, err := h.service.ListCategories(r.Context(), ident.BusinessID)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(categories, len(categories), len(categories), 0))
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCategory(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req categoryRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), ident.BusinessID, ident.UserID, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req categoryRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), ident.BusinessID, ident.UserID, id, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), ident.BusinessID, ident.UserID, id); err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vendorRequest struct {
	Name         string       `json:"name" validate:"required,max=200"`
	ContactName  string       `json:"contact_name" validate:"max=200"`
	Email        string       `json:"email" validate:"omitempty,email"`
	Phone        string       `json:"phone" validate:"max=50"`
	Address      string       `json:"address" validate:"max=500"`
	Website      string       `json:"website" validate:"omitempty,url"`
	PaymentTerms string       `json:"payment_terms" validate:"max=100"`
	Notes        string       `json:"notes" validate:"max=2000"`
	Status       VendorStatus `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

func (req vendorRequest) input() VendorInput {
	return VendorInput{
		Name:         req.Name,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		Website:      req.Website,
		PaymentTerms: req.PaymentTerms,
		Notes:        req.Notes,
		Status:       req.Status,
	}
}

func (h *Handler) handleListVendors(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	filter := VendorFilter{
		BusinessID: ident.BusinessID,
		Status:     VendorStatus(r.URL.Query().Get("status")),
		Search:     r.URL.Query().Get("search"),
	}
	filter.Limit, filter.Offset = httpx.Page(r, 50, 500)
	vendors, total, err := h.service.ListVendors(r.Context(), filter)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog list vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(vendors, total, filter.Limit, filter.Offset))
}

func (h *Handler) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.GetVendor(r.Context(), ident.BusinessID, id)
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog get vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	var req vendorRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVendor(r.Context(), ident.BusinessID, ident.UserID, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog create vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateVendor(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req vendorRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.UpdateVendor(r.Context(), ident.BusinessID, ident.UserID, id, req.input())
	if err != nil {
		httpx.RespondErrorLog(w, h.logger, "catalog update vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
