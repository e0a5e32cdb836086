package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const defaultPublishTimeout = 5 * time.Second

// OrderPublisher fans placed orders out to a pool of workers that announce
// them through an OrderEventPublisher. Publishing is best effort: a placed
// order stays placed whether or not its event goes out.
type OrderPublisher struct {
	publisher port.OrderEventPublisher
	queue     chan domain.Order
	workers   int
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewOrderPublisher(publisher port.OrderEventPublisher, queueSize, workers int, logger *slog.Logger) *OrderPublisher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderPublisher{
		publisher: publisher,
		queue:     make(chan domain.Order, queueSize),
		workers:   workers,
		timeout:   defaultPublishTimeout,
		logger:    logger,
	}
}

// Start launches the worker pool. Workers exit once Close drains the queue.
func (p *OrderPublisher) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id)
		}(i)
	}
	p.logger.Info("started order publisher", "workers", p.workers)
}

// Enqueue hands an order to the workers without blocking. It reports false
// when the queue is full or the publisher is closed.
func (p *OrderPublisher) Enqueue(order domain.Order) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queue <- order:
		return true
	default:
		p.logger.Warn("order publish queue full, dropping event", "order_id", order.ID)
		return false
	}
}

// Close stops accepting orders and waits for queued ones to be published.
func (p *OrderPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *OrderPublisher) workerLoop(id int) {
	for order := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)

		if err := p.publisher.PublishOrderPlaced(ctx, order); err != nil {
			p.logger.Error("failed to publish order", "worker", id, "order_id", order.ID, "error", err)
		} else {
			p.logger.Debug("published order", "worker", id, "order_id", order.ID)
		}

		cancel()
	}
}
