package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	customerID    = "stress-customer"
	productID     = "flash-sale-item"
	initialStock  = 20
	totalRequests = 50
)

type backend interface {
	port.CustomerRepository
	port.ProductRepository
	port.OrderRepository
	port.OrderCommitter
}

func main() {
	driver := flag.String("store", "memory", "store to run against: memory or sqlite")
	flag.Parse()

	ctx := context.Background()

	store, stock, cleanup, err := setup(ctx, *driver)
	if err != nil {
		log.Fatalf("failed to set up %s store: %v", *driver, err)
	}
	defer cleanup()

	orderService := service.NewOrderService(store, store, store, store,
		service.WithMaxAttempts(5),
		service.WithRetryBackoff(time.Millisecond),
	)

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, customerID, []domain.LineItemRequest{
				{ProductID: productID, Quantity: 1},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrTransactionConflict):
				soldOutCount.Add(1)
			default:
				failCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:            %s\n", *driver)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Other errors:     %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	finalStock, err := stock(ctx)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}

func setup(ctx context.Context, driver string) (backend, func(context.Context) (int, error), func(), error) {
	customer := domain.Customer{ID: customerID, Email: "stress@example.com"}
	product := domain.Product{
		ID:       productID,
		Name:     "Flash Sale Item",
		Price:    decimal.RequireFromString("19.99"),
		Quantity: initialStock,
	}

	stockOf := func(store port.ProductRepository) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			products, err := store.FindAllByID(ctx, []string{productID})
			if err != nil || len(products) == 0 {
				return 0, fmt.Errorf("load product: %v", err)
			}
			return products[0].Quantity, nil
		}
	}

	switch driver {
	case "sqlite":
		dir, err := os.MkdirTemp("", "order-stress-*")
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := storage.OpenSQLite(filepath.Join(dir, "stress.db"))
		if err != nil {
			os.RemoveAll(dir)
			return nil, nil, nil, err
		}
		cleanup := func() {
			store.Close()
			os.RemoveAll(dir)
		}
		if err := store.CreateCustomer(ctx, customer); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if err := store.CreateProduct(ctx, product); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		return store, stockOf(store), cleanup, nil

	case "memory":
		store := storage.NewMemoryAdapter()
		store.AddCustomer(customer)
		store.AddProduct(product)
		return store, stockOf(store), func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", driver)
	}
}
