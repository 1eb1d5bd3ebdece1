// Package httppresentation is the HTTP edge: routing, DTO mapping, and
// error-to-status translation. No business rules live here.
package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	appcart "github.com/zynvolt/storefront/internal/application/cart"
	appcatalog "github.com/zynvolt/storefront/internal/application/catalog"
	apporder "github.com/zynvolt/storefront/internal/application/order"
	appwebhook "github.com/zynvolt/storefront/internal/application/webhook"
	domaincart "github.com/zynvolt/storefront/internal/domain/cart"
	domaincatalog "github.com/zynvolt/storefront/internal/domain/catalog"
	domaininventory "github.com/zynvolt/storefront/internal/domain/inventory"
	domainorder "github.com/zynvolt/storefront/internal/domain/order"
	"github.com/zynvolt/storefront/internal/domain/outbox"
	domainpayment "github.com/zynvolt/storefront/internal/domain/payment"
	"github.com/zynvolt/storefront/internal/observability"
)

type Handler struct {
	orders   *apporder.Service
	carts    *appcart.Service
	catalog  *appcatalog.Service
	webhooks *appwebhook.Processor
	bus      outbox.Publisher

	log observability.Logger
	tel observability.Observability
}

func NewHandler(
	orderSvc *apporder.Service,
	cartSvc *appcart.Service,
	catalogSvc *appcatalog.Service,
	webhookProc *appwebhook.Processor,
	bus outbox.Publisher,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		orders:   orderSvc,
		carts:    cartSvc,
		catalog:  catalogSvc,
		webhooks: webhookProc,
		bus:      bus,
		log:      tel.Logger().With(observability.F("component", "http_server")),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Observability(h.tel))

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{id}", h.handleGetProduct)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/products", h.handleCreateProduct)
			r.Put("/products/{id}", h.handleUpdateProduct)
			r.Put("/inventory/{id}", h.handleUpdateInventory)
			r.Delete("/products/{id}", h.handleDeleteProduct)
			r.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
		})

		r.Get("/cart", h.handleGetCart)
		r.Post("/cart/items", h.handleAddCartItem)
		r.Put("/cart/items/{productID}", h.handleSetCartQuantity)
		r.Delete("/cart/items/{productID}", h.handleRemoveCartItem)

		r.Post("/orders/checkout", h.handleCheckout)
		r.Post("/payments/confirm", h.handleConfirmPayment)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
	})

	// The payment webhook is only reachable when a signing secret exists;
	// there is no unverified mode.
	if h.webhooks != nil {
		r.Post("/webhooks/payment", h.handlePaymentWebhook)
	}
	r.Post("/webhooks/shipping", h.handleShippingWebhook)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- catalog ---

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), domaincatalog.Filter{
		CategoryID: r.URL.Query().Get("category"),
		Flag:       r.URL.Query().Get("flag"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if products == nil {
		products = []*domaincatalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	ProductID      string            `json:"product_id"`
	SKU            string            `json:"sku"`
	StockLevel     int               `json:"stock_level"`
	CurrentPrice   string            `json:"current_price"`
	CategoryID     string            `json:"category_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Images         []string          `json:"images"`
	TechnicalSpecs map[string]string `json:"technical_specs"`
	DisplayFlags   []string          `json:"display_flags"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := decimal.NewFromString(req.CurrentPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("current_price must be a decimal string"))
		return
	}

	result, err := h.catalog.CreateProduct(r.Context(), appcatalog.CreateProductInput{
		ProductID:      req.ProductID,
		SKU:            req.SKU,
		StockLevel:     req.StockLevel,
		CurrentPrice:   price,
		CategoryID:     req.CategoryID,
		Name:           req.Name,
		Description:    req.Description,
		Images:         req.Images,
		TechnicalSpecs: req.TechnicalSpecs,
		DisplayFlags:   req.DisplayFlags,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Product)
}

type updateProductRequest struct {
	Name           *string           `json:"name"`
	Description    *string           `json:"description"`
	CategoryID     *string           `json:"category_id"`
	Images         []string          `json:"images"`
	TechnicalSpecs map[string]string `json:"technical_specs"`
	DisplayFlags   []string          `json:"display_flags"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), domaincatalog.Update{
		Name:           req.Name,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		Images:         req.Images,
		TechnicalSpecs: req.TechnicalSpecs,
		DisplayFlags:   req.DisplayFlags,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type updateInventoryRequest struct {
	StockLevel   *int    `json:"stock_level"`
	CurrentPrice *string `json:"current_price"`
}

type inventoryResponse struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	StockLevel   int    `json:"stock_level"`
	CurrentPrice string `json:"current_price"`
}

func (h *Handler) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req updateInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input := appcatalog.UpdateInventoryInput{StockLevel: req.StockLevel}
	if req.CurrentPrice != nil {
		price, perr := decimal.NewFromString(*req.CurrentPrice)
		if perr != nil {
			writeError(w, http.StatusBadRequest, errors.New("current_price must be a decimal string"))
			return
		}
		input.CurrentPrice = &price
	}

	ledger, err := h.catalog.UpdateInventory(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResponse{
		ProductID:    ledger.ProductID,
		SKU:          ledger.SKU,
		StockLevel:   ledger.StockLevel,
		CurrentPrice: ledger.CurrentPrice.StringFixed(2),
	})
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- orders ---

type updateOrderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	CarrierName    string `json:"carrier_name"`
	TrackingURL    string `json:"tracking_url"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := domainorder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to, apporder.Tracking{
		Number:  req.TrackingNumber,
		Carrier: req.CarrierName,
		URL:     req.TrackingURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(to)})
}

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Email           string `json:"email"`
	ShippingAddress struct {
		Name    string `json:"name"`
		Line1   string `json:"line1"`
		City    string `json:"city"`
		State   string `json:"state"`
		Pincode string `json:"pincode"`
	} `json:"shipping_address"`
}

type checkoutResponse struct {
	OrderID          string `json:"order_id"`
	ProviderOrderRef string `json:"provider_order_ref"`
	CheckoutURL      string `json:"checkout_url"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]apporder.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, apporder.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	result, err := h.orders.Checkout(r.Context(), apporder.CheckoutInput{
		UserID: uid,
		Email:  req.Email,
		Items:  items,
		Shipping: domainorder.ShippingAddress{
			Name:    req.ShippingAddress.Name,
			Line1:   req.ShippingAddress.Line1,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Pincode: req.ShippingAddress.Pincode,
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:          result.OrderID,
		ProviderOrderRef: result.ProviderOrderRef,
		CheckoutURL:      result.CheckoutURL,
		Amount:           result.Amount.StringFixed(2),
		Currency:         result.Currency,
	})
}

type confirmPaymentRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	var req confirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.orders.ConfirmPayment(r.Context(), uid, req.SessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domainorder.StatusPaid)})
}

type orderSummary struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TotalAmount    string `json:"total_amount"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	CarrierName    string `json:"carrier_name,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toOrderSummary(o *domainorder.Order) orderSummary {
	return orderSummary{
		OrderID:        o.ID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount.StringFixed(2),
		TrackingNumber: o.TrackingNumber,
		CarrierName:    o.CarrierName,
		TrackingURL:    o.TrackingURL,
		CreatedAt:      o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	orders, err := h.orders.ListMine(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderSummary(o))
	}
	writeJSON(w, http.StatusOK, out)
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderDetailResponse struct {
	orderSummary
	Shipping domainShipping  `json:"shipping_address"`
	Items    []orderItemView `json:"items"`
}

type domainShipping struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	view, err := h.orders.GetMine(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]orderItemView, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, orderItemView{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderSummary: toOrderSummary(view.Order),
		Shipping: domainShipping{
			Name:    view.Order.Shipping.Name,
			Line1:   view.Order.Shipping.Line1,
			City:    view.Order.Shipping.City,
			State:   view.Order.Shipping.State,
			Pincode: view.Order.Shipping.Pincode,
		},
		Items: items,
	})
}

// --- cart ---

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	view, err := h.carts.Get(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.carts.AddItem(r.Context(), uid, req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleSetCartQuantity(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.carts.SetQuantity(r.Context(), uid, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing user identity"))
		return
	}
	if err := h.carts.RemoveItem(r.Context(), uid, chi.URLParam(r, "productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- shared helpers ---

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainorder.ErrNotFound),
		errors.Is(err, domaininventory.ErrNotFound),
		errors.Is(err, domaincatalog.ErrNotFound),
		errors.Is(err, domaincart.ErrNotFound),
		errors.Is(err, domaincart.ErrItemNotFound),
		errors.Is(err, domainpayment.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainorder.ErrAlreadyPaid),
		errors.Is(err, domainorder.ErrInvalidTransition),
		errors.Is(err, domainorder.ErrConflict),
		errors.Is(err, domaininventory.ErrInsufficientStock),
		errors.Is(err, apporder.ErrStockConflict),
		errors.Is(err, appcatalog.ErrActiveOrderRefs):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, apporder.ErrValidation),
		errors.Is(err, appcatalog.ErrValidation),
		errors.Is(err, appcart.ErrValidation),
		errors.Is(err, domaincatalog.ErrUnknownCategory),
		errors.Is(err, domainorder.ErrUnknownStatus),
		errors.Is(err, domainorder.ErrInvalidShipping),
		errors.Is(err, domainpayment.ErrIncomplete),
		errors.Is(err, domaincart.ErrInvalidQuantity),
		errors.Is(err, domaininventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
