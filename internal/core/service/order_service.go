package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	tracerName = "github.com/rl1809/order-placement/internal/core/service"

	defaultCommitTimeout = 5 * time.Second
	defaultMaxAttempts   = 3
	defaultRetryBackoff  = 10 * time.Millisecond
)

// OrderService places orders: customer check, stock validation, assembly,
// then one atomic commit of the inventory decrement and the new order.
type OrderService struct {
	customers   port.CustomerRepository
	validator   *InventoryValidator
	committer   port.OrderCommitter
	orders      port.OrderRepository
	idempotency port.IdempotencyRepository
	publisher   *OrderPublisher
	tracer      trace.Tracer

	commitTimeout time.Duration
	maxAttempts   int
	retryBackoff  time.Duration
}

type Option func(s *OrderService)

// WithCommitTimeout bounds the commit step. A commit that runs out of time
// fails with domain.ErrTransactionTimeout.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

// WithMaxAttempts sets how many times a placement is tried when the commit
// reports a conflict. Every attempt revalidates against fresh stock.
func WithMaxAttempts(n int) Option {
	return func(s *OrderService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *OrderService) {
		if d >= 0 {
			s.retryBackoff = d
		}
	}
}

func WithIdempotency(repo port.IdempotencyRepository) Option {
	return func(s *OrderService) {
		s.idempotency = repo
	}
}

func WithPublisher(p *OrderPublisher) Option {
	return func(s *OrderService) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *OrderService) {
		if t != nil {
			s.tracer = t
		}
	}
}

func NewOrderService(
	customers port.CustomerRepository,
	products port.ProductRepository,
	committer port.OrderCommitter,
	orders port.OrderRepository,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		customers:     customers,
		validator:     NewInventoryValidator(products),
		committer:     committer,
		orders:        orders,
		tracer:        otel.Tracer(tracerName),
		commitTimeout: defaultCommitTimeout,
		maxAttempts:   defaultMaxAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder creates an order for customerID. Either the inventory decrement
// and the order are both persisted, or neither is.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID string, items []domain.LineItemRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder", trace.WithAttributes(
		attribute.String("customer.id", customerID),
		attribute.Int("order.lines", len(items)),
	))
	defer span.End()

	order, err := s.placeOrder(ctx, customerID, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))

	if s.publisher != nil {
		s.publisher.Enqueue(*order)
	}

	return order, nil
}

// PlaceOrderOnce guards PlaceOrder with an idempotency key derived from
// requestID. A repeated request fails with domain.ErrDuplicateRequest; the key
// is released again when the placement fails so the caller may retry.
func (s *OrderService) PlaceOrderOnce(ctx context.Context, requestID, customerID string, items []domain.LineItemRequest) (*domain.Order, error) {
	if s.idempotency == nil || requestID == "" {
		return s.PlaceOrder(ctx, customerID, items)
	}

	idempotencyKey := fmt.Sprintf("order:%s:%s", customerID, requestID)

	ok, err := s.idempotency.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	order, err := s.PlaceOrder(ctx, customerID, items)
	if err != nil {
		if releaseErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
			return nil, errors.Join(err, fmt.Errorf("release idempotency key: %w", releaseErr))
		}
		return nil, err
	}

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, &domain.InvalidOrderError{Reason: "order id is required"}
	}

	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, customerID string, items []domain.LineItemRequest) (*domain.Order, error) {
	if err := checkRequest(customerID, items); err != nil {
		return nil, err
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return nil, &domain.CustomerNotFoundError{CustomerID: customerID}
	}

	for attempt := 1; ; attempt++ {
		order, err := s.attempt(ctx, customer.ID, items)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrTransactionConflict) || attempt >= s.maxAttempts {
			return nil, err
		}
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}
}

func (s *OrderService) attempt(ctx context.Context, customerID string, items []domain.LineItemRequest) (*domain.Order, error) {
	validated, err := s.validator.Validate(ctx, items)
	if err != nil {
		return nil, err
	}

	draft, updates := AssembleOrder(customerID, validated)

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	order, err := s.committer.CommitOrder(commitCtx, draft, updates)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(commitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransactionTimeout, err)
		}
		return nil, err
	}

	return order, nil
}

func (s *OrderService) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * s.retryBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func checkRequest(customerID string, items []domain.LineItemRequest) error {
	if customerID == "" {
		return &domain.InvalidOrderError{Reason: "customer id is required"}
	}
	if len(items) == 0 {
		return &domain.InvalidOrderError{Reason: "order has no line items"}
	}
	for i, item := range items {
		if item.ProductID == "" {
			return &domain.InvalidOrderError{Reason: fmt.Sprintf("line %d: product id is required", i+1)}
		}
		if item.Quantity <= 0 {
			return &domain.InvalidOrderError{Reason: fmt.Sprintf("line %d: quantity must be positive", i+1)}
		}
		if item.Quantity > domain.MaxLineQuantity {
			return &domain.InvalidOrderError{Reason: fmt.Sprintf("line %d: quantity exceeds %d", i+1, domain.MaxLineQuantity)}
		}
	}
	return nil
}
