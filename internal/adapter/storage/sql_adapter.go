package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/core/domain"
)

// sqlStore implements the order placement ports over database/sql for
// engines that use '?' placeholders (MySQL, SQLite).
type sqlStore struct {
	db      *sql.DB
	timeArg func(time.Time) any
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqlStore) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, email, created_at) VALUES (?, ?, ?)`,
		customer.ID, customer.Email, s.timeArg(customer.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *sqlStore) CreateProduct(ctx context.Context, product domain.Product) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID, product.Name, product.Price.String(), product.Quantity,
		s.timeArg(now), s.timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products SET price = ?, updated_at = ? WHERE id = ?`,
		price.String(), s.timeArg(time.Now().UTC()), productID,
	)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (s *sqlStore) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, created_at FROM customers WHERE id = ?`, customerID,
	).Scan(&c.ID, &c.Email, scanTime{&c.CreatedAt})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (s *sqlStore) FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(productIDs)), ", ")
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(productIDs))
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity, scanTime{&p.CreatedAt}, scanTime{&p.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of product %s: %w", p.ID, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (s *sqlStore) ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.decrementStock(ctx, tx, updates); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqlStore) RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.timeArg(time.Now().UTC())
	for _, u := range sortedUpdates(updates) {
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ?`,
			u.Deduct, now, u.ProductID,
		)
		if err != nil {
			return fmt.Errorf("restore stock of product %s: %w", u.ProductID, err)
		}
	}

	return tx.Commit()
}

func (s *sqlStore) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order, err := s.insertOrder(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

// CommitOrder decrements stock and inserts the order in one transaction.
// Each decrement is conditional on enough stock remaining, so concurrent
// commits can never drive a product negative.
func (s *sqlStore) CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.decrementStock(ctx, tx, updates); err != nil {
		return nil, err
	}

	order, err := s.insertOrder(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func (s *sqlStore) FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, created_at FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.CustomerID, &status, scanTime{&order.CreatedAt})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, price FROM order_items
		WHERE order_id = ? ORDER BY line_no`, orderID)
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

func (s *sqlStore) decrementStock(ctx context.Context, tx execer, updates []domain.InventoryUpdate) error {
	now := s.timeArg(time.Now().UTC())

	for _, u := range sortedUpdates(updates) {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - ?, updated_at = ?
			WHERE id = ? AND quantity >= ?`,
			u.Deduct, now, u.ProductID, u.Deduct,
		)
		if err != nil {
			return fmt.Errorf("update stock of product %s: %w", u.ProductID, err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: stock of product %s changed", domain.ErrTransactionConflict, u.ProductID)
		}
	}

	return nil
}

func (s *sqlStore) insertOrder(ctx context.Context, tx execer, draft domain.OrderDraft) (*domain.Order, error) {
	order := domain.NewOrder(uuid.NewString(), draft, time.Now().UTC())

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, created_at) VALUES (?, ?, ?, ?)`,
		order.ID, order.CustomerID, string(order.Status), s.timeArg(order.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, i+1, item.ProductID, item.Quantity, item.Price.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	return order, nil
}

// sortedUpdates returns the updates merged per product and ordered by ID, the
// row lock order every writer follows.
func sortedUpdates(updates []domain.InventoryUpdate) []domain.InventoryUpdate {
	merged := make(map[string]int, len(updates))
	for _, u := range updates {
		merged[u.ProductID] += u.Deduct
	}

	out := make([]domain.InventoryUpdate, 0, len(merged))
	for id, deduct := range merged {
		out = append(out, domain.InventoryUpdate{ProductID: id, Deduct: deduct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// scanTime accepts the time representations the supported drivers return.
type scanTime struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func (s scanTime) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			*s.t = t
			return nil
		}
	}
	return fmt.Errorf("parse time %q", text)
}
