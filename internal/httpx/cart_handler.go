package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/cart"
	"github.com/ariefcatur/go-storefront-cart/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	SessionCookie = "cart_session"
	SessionHeader = "X-Cart-Session"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type ProductSource interface {
	Get(ctx context.Context, id int64) (cart.Product, error)
	List(ctx context.Context) ([]cart.Product, error)
}

type CartHandler struct {
	Catalog  ProductSource
	Sessions *cart.Sessions
}

type AddItemReq struct {
	ProductID int64  `json:"product_id" validate:"gt=0"`
	Quantity  *int64 `json:"quantity" validate:"omitempty,gt=0"`
}

type SetQuantityReq struct {
	Quantity *int64 `json:"quantity" validate:"required,gte=0"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Get("/order-items", h.orderItems)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.setQuantity)
		r.Delete("/items/{productID}", h.removeItem)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// store resolves the caller's cart, issuing a new session when the request
// carries none.
func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) *cart.Store {
	id := r.Header.Get(SessionHeader)
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		id = c.Value
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int((90 * 24 * time.Hour).Seconds()),
		})
	}
	w.Header().Set(SessionHeader, id)
	return h.Sessions.Get(r.Context(), id)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid json")
	}
	return validate.Struct(v)
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *CartHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store(w, r).Summary())
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// always a fresh snapshot: the cart clamps against the stock it is given
	p, err := h.Catalog.Get(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s := h.store(w, r)
	s.AddProduct(r.Context(), p, qty)
	writeJSON(w, http.StatusOK, s.Summary())
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req SetQuantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.store(w, r)
	s.SetQuantity(r.Context(), id, *req.Quantity)
	writeJSON(w, http.StatusOK, s.Summary())
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	s := h.store(w, r)
	s.RemoveProduct(r.Context(), id)
	writeJSON(w, http.StatusOK, s.Summary())
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	s := h.store(w, r)
	s.ClearCart(r.Context())
	writeJSON(w, http.StatusOK, s.Summary())
}

func (h *CartHandler) orderItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store(w, r).BuildOrderItems())
}
