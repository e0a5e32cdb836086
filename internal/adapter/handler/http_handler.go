package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/order-placement/internal/adapter/handler/pb"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

type HTTPHandler struct {
	orderService *service.OrderService
	logger       *slog.Logger
}

type LineItemHTTPRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderHTTPRequest struct {
	RequestID  string                `json:"request_id"`
	CustomerID string                `json:"customer_id"`
	Items      []LineItemHTTPRequest `json:"items"`
}

type OrderHTTPResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Order   *pb.Order `json:"order,omitempty"`
}

func NewHTTPHandler(orderService *service.OrderService, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{orderService: orderService, logger: logger}
}

// Routes builds the HTTP router.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Post("/api/orders", h.PlaceOrder)
	r.Get("/api/orders/{id}", h.GetOrder)
	return r
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	items := make([]domain.LineItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.LineItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orderService.PlaceOrderOnce(r.Context(), req.RequestID, req.CustomerID, items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, OrderHTTPResponse{
		Success: true,
		Message: "order placed successfully",
		Order:   toPBOrder(order),
	})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, OrderHTTPResponse{
		Success: true,
		Message: "ok",
		Order:   toPBOrder(order),
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	out := classify(err)
	if out.httpStatus >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "order request failed",
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}

	writeJSON(w, out.httpStatus, OrderHTTPResponse{
		Success: false,
		Message: out.message,
	})
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
