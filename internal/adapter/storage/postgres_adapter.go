package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/core/domain"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		price      NUMERIC(12, 2) NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id          UUID PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers (id),
		status      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   UUID NOT NULL REFERENCES orders (id),
		line_no    INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products (id),
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		price      NUMERIC(12, 2) NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
}

// PostgresAdapter stores customers, products and orders in PostgreSQL.
// A commit locks the product rows it touches with SELECT ... FOR UPDATE in
// ID order, checks stock under those locks, then writes.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(ctx context.Context, connString string) (*PostgresAdapter, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresAdapter{pool: pool}, nil
}

func (p *PostgresAdapter) Close() {
	p.pool.Close()
}

func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: apply schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO customers (id, email, created_at) VALUES ($1, $2, $3)`,
		customer.ID, customer.Email, customer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) CreateProduct(ctx context.Context, product domain.Product) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO products (id, name, price, quantity) VALUES ($1, $2, $3::numeric, $4)`,
		product.ID, product.Name, product.Price.String(), product.Quantity,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE products SET price = $1::numeric, updated_at = NOW() WHERE id = $2`,
		price.String(), productID,
	)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (p *PostgresAdapter) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, created_at FROM customers WHERE id = $1`, customerID,
	).Scan(&c.ID, &c.Email, &c.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (p *PostgresAdapter) FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, name, price::text, quantity, created_at, updated_at
		FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(productIDs))
	for rows.Next() {
		var (
			product domain.Product
			price   string
		)
		if err := rows.Scan(&product.ID, &product.Name, &price, &product.Quantity, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if product.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of product %s: %w", product.ID, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (p *PostgresAdapter) ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return lockAndDecrement(ctx, tx, updates)
	})
}

func (p *PostgresAdapter) RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, u := range sortedUpdates(updates) {
			_, err := tx.Exec(ctx,
				`UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2`,
				u.Deduct, u.ProductID,
			)
			if err != nil {
				return fmt.Errorf("restore stock of product %s: %w", u.ProductID, err)
			}
		}
		return nil
	})
}

func (p *PostgresAdapter) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	var order *domain.Order
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var err error
		order, err = insertPostgresOrder(ctx, tx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *PostgresAdapter) CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error) {
	var order *domain.Order
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := lockAndDecrement(ctx, tx, updates); err != nil {
			return err
		}

		var err error
		order, err = insertPostgresOrder(ctx, tx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *PostgresAdapter) FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, nil
	}

	var (
		order  domain.Order
		status string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id::text, customer_id, status, created_at FROM orders WHERE id = $1`, orderID,
	).Scan(&order.ID, &order.CustomerID, &status, &order.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	rows, err := p.pool.Query(ctx, `
		SELECT product_id, quantity, price::text FROM order_items
		WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  domain.OrderLineItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse order item price: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return &order, nil
}

// lockAndDecrement takes row locks on every touched product in ID order and
// decrements only after all of them were checked.
func lockAndDecrement(ctx context.Context, tx pgx.Tx, updates []domain.InventoryUpdate) error {
	merged := sortedUpdates(updates)
	ids := make([]string, len(merged))
	for i, u := range merged {
		ids[i] = u.ProductID
	}

	rows, err := tx.Query(ctx,
		`SELECT id, quantity FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}

	stock := make(map[string]int, len(ids))
	for rows.Next() {
		var (
			id       string
			quantity int
		)
		if err := rows.Scan(&id, &quantity); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked product: %w", err)
		}
		stock[id] = quantity
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate locked products: %w", err)
	}

	for _, u := range merged {
		quantity, ok := stock[u.ProductID]
		if !ok {
			return &domain.ProductNotFoundError{ProductID: u.ProductID}
		}
		if quantity < u.Deduct {
			return fmt.Errorf("%w: product %s has %d, need %d",
				domain.ErrTransactionConflict, u.ProductID, quantity, u.Deduct)
		}
	}

	for _, u := range merged {
		_, err := tx.Exec(ctx,
			`UPDATE products SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2`,
			u.Deduct, u.ProductID,
		)
		if err != nil {
			return fmt.Errorf("update stock of product %s: %w", u.ProductID, err)
		}
	}

	return nil
}

func insertPostgresOrder(ctx context.Context, tx pgx.Tx, draft domain.OrderDraft) (*domain.Order, error) {
	order := domain.NewOrder(uuid.NewString(), draft, time.Now().UTC())

	_, err := tx.Exec(ctx,
		`INSERT INTO orders (id, customer_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		order.ID, order.CustomerID, string(order.Status), order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5::numeric)`,
			order.ID, i+1, item.ProductID, item.Quantity, item.Price.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	return order, nil
}
