// Package httpapi exposes the storefront services as JSON over HTTP. The
// session travels in an HttpOnly cookie; every response uses Envelope.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Accounts is the account and session surface (services.UserService).
type Accounts interface {
	Signup(ctx context.Context, rc *services.Request, email, name, password string) (*models.User, error)
	Signin(ctx context.Context, rc *services.Request, email, password string) (*models.User, error)
	Signout(ctx context.Context, rc *services.Request) string
	RequestReset(ctx context.Context, rc *services.Request, email string) (string, error)
	ResetPassword(ctx context.Context, rc *services.Request, password, confirmPassword, token string) (*models.User, error)
	UpdatePermissions(ctx context.Context, rc *services.Request, userID string, permissions []string) (*models.User, error)
	Me(ctx context.Context, rc *services.Request) (*models.User, error)
	Users(ctx context.Context, rc *services.Request) ([]*models.User, error)
}

// Catalog is the item surface (services.ItemService).
type Catalog interface {
	CreateItem(ctx context.Context, rc *services.Request, in services.ItemInput) (*models.Item, error)
	Items(ctx context.Context, limit, offset int) ([]*models.Item, error)
	Item(ctx context.Context, id string) (*models.Item, error)
	UpdateItem(ctx context.Context, rc *services.Request, id string, in services.ItemInput) (*models.Item, error)
	DeleteItem(ctx context.Context, rc *services.Request, id string) (*models.Item, error)
	ImageUploadURL(ctx context.Context, rc *services.Request) (string, string, error)
}

// Carts is the cart surface (services.CartService).
type Carts interface {
	AddToCart(ctx context.Context, rc *services.Request, itemID string) (*models.CartItem, error)
	Cart(ctx context.Context, rc *services.Request) ([]*models.CartItem, error)
	RemoveFromCart(ctx context.Context, rc *services.Request, id string) (*models.CartItem, error)
}

// Pinger reports store liveness; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	accounts      Accounts
	catalog       Catalog
	carts         Carts
	sessions      SessionVerifier
	db            Pinger
	logger        logging.Logger
	secureCookies bool
}

type Options struct {
	Accounts Accounts
	Catalog  Catalog
	Carts    Carts
	Sessions SessionVerifier
	DB       Pinger
	Logger   logging.Logger
	// SecureCookies marks the session cookie Secure; set it when the site
	// is served over https.
	SecureCookies bool
}

func NewHandler(o Options) *Handler {
	logger := o.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{
		accounts:      o.Accounts,
		catalog:       o.Catalog,
		carts:         o.Carts,
		sessions:      o.Sessions,
		db:            o.DB,
		logger:        logger.With("module", "http"),
		secureCookies: o.SecureCookies,
	}
}

// Routes builds the router. allowedOrigins feeds CORS.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(tracing, h.session)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/signup", h.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/signin", h.handleSignin).Methods(http.MethodPost)
	r.HandleFunc("/signout", h.handleSignout).Methods(http.MethodPost)
	r.HandleFunc("/request-reset", h.handleRequestReset).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", h.handleResetPassword).Methods(http.MethodPost)

	r.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/users", h.handleUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/permissions", h.handleUpdatePermissions).Methods(http.MethodPut)

	r.HandleFunc("/items", h.handleItems).Methods(http.MethodGet)
	r.HandleFunc("/items", h.handleCreateItem).Methods(http.MethodPost)
	r.HandleFunc("/items/upload-url", h.handleUploadURL).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}", h.handleItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.handleUpdateItem).Methods(http.MethodPut)
	r.HandleFunc("/items/{id}", h.handleDeleteItem).Methods(http.MethodDelete)

	r.HandleFunc("/cart", h.handleCart).Methods(http.MethodGet)
	r.HandleFunc("/cart/{itemID}", h.handleAddToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/{id}", h.handleRemoveFromCart).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.respondJSON(w, req, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.respondJSON(w, req, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return h.accessLog(CORS(allowedOrigins, r))
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, r, http.StatusBadRequest, "invalid JSON payload", nil)
		return false
	}
	return true
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			h.respondJSON(w, r, http.StatusServiceUnavailable, "unavailable", nil)
			return
		}
	}
	h.respondJSON(w, r, http.StatusOK, "ok", nil)
}

// --- accounts ---

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	ResetToken      string `json:"resetToken"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.Signup(r.Context(), h.request(w, r), req.Email, req.Name, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, "signed up", user)
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.Signin(r.Context(), h.request(w, r), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "signed in", user)
}

func (h *Handler) handleSignout(w http.ResponseWriter, r *http.Request) {
	msg := h.accounts.Signout(r.Context(), h.request(w, r))
	h.respondJSON(w, r, http.StatusOK, msg, nil)
}

func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.accounts.RequestReset(r.Context(), h.request(w, r), req.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, msg, nil)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.ResetPassword(r.Context(), h.request(w, r), req.Password, req.ConfirmPassword, req.ResetToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "password reset", user)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Me(r.Context(), h.request(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", user)
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.Users(r.Context(), h.request(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", list)
}

func (h *Handler) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.UpdatePermissions(r.Context(), h.request(w, r), mux.Vars(r)["id"], req.Permissions)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "permissions updated", user)
}

// --- items ---

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	list, err := h.catalog.Items(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", list)
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Item(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", item)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	item, err := h.catalog.CreateItem(r.Context(), h.request(w, r), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, "item created", item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	item, err := h.catalog.UpdateItem(r.Context(), h.request(w, r), mux.Vars(r)["id"], in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "item updated", item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.DeleteItem(r.Context(), h.request(w, r), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "item deleted", item)
}

type uploadURLResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (h *Handler) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.catalog.ImageUploadURL(r.Context(), h.request(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", uploadURLResponse{Key: key, URL: url})
}

// --- cart ---

func (h *Handler) handleCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.carts.Cart(r.Context(), h.request(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "ok", lines)
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	line, err := h.carts.AddToCart(r.Context(), h.request(w, r), mux.Vars(r)["itemID"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "added to cart", line)
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	line, err := h.carts.RemoveFromCart(r.Context(), h.request(w, r), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, "removed from cart", line)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, name)
	}
	return n, nil
}
